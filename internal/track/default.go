package track

import (
	"bytes"
	_ "embed"
)

//go:embed default.yaml
var defaultTrack []byte

// Default returns a fresh copy of the built-in ring track.
func Default() (*Layout, error) {
	return DecodeYAML(bytes.NewReader(defaultTrack))
}
