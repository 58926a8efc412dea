package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const runIndexFile = "run_index.json"

// RunConfig is the trainer setup recorded next to a run's results.
type RunConfig struct {
	RunID      string `json:"run_id"`
	Trainer    string `json:"trainer"`
	Track      string `json:"track"`
	SensorMode string `json:"sensor_mode"`
	Seed       int64  `json:"seed"`
	Hidden     []int  `json:"hidden_layers"`
	// Settings is the trainer's own config section as written in the config file.
	Settings any    `json:"settings,omitempty"`
	Resumed  string `json:"resumed_from,omitempty"`
}

type RunArtifacts struct {
	Config     RunConfig `json:"config"`
	History    []float64 `json:"history"`
	FinalScore float64   `json:"final_score"`
	Ticks      int       `json:"ticks"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	// Details carries trainer-specific results such as the last generation plan.
	Details any `json:"details,omitempty"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Trainer      string  `json:"trainer"`
	Track        string  `json:"track"`
	Seed         int64   `json:"seed"`
	Entries      int     `json:"entries"`
	Ticks        int     `json:"ticks"`
	FinalScore   float64 `json:"final_score"`
	SnapshotID   string  `json:"snapshot_id,omitempty"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes config.json, fitness_history.json and
// summary.json under baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), map[string]any{
		"history":     artifacts.History,
		"final_score": artifacts.FinalScore,
		"summary":     Summarize(artifacts.History),
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), artifacts); err != nil {
		return "", err
	}
	return runDir, nil
}

// ReadHistory loads the history written by WriteRunArtifacts.
func ReadHistory(baseDir, runID string) ([]float64, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "fitness_history.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var payload struct {
		History []float64 `json:"history"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, err
	}
	return payload.History, true, nil
}

// AppendRunIndex adds entry to the index, replacing an entry with the same
// run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
