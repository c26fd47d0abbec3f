package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// tapProperties is the stream catalog the ingestion tool leaves in its run
// directory after configuring a tap.
type tapProperties struct {
	Streams []struct {
		TapStreamID string `json:"tap_stream_id"`
	} `json:"streams"`
}

// DiscoverStreams scans the ingestion tool's run directory for stream
// catalogs and returns the discovered stream identifiers, sorted. Steps may
// declare datasets up front; this recovers the ones only the tool knows
// about. A missing run directory yields no streams rather than an error.
func DiscoverStreams(runDir string) ([]string, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(runDir, entry.Name(), "tap.properties.json")
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var props tapProperties
		if err := json.Unmarshal(data, &props); err != nil {
			continue
		}
		for _, s := range props.Streams {
			if s.TapStreamID != "" {
				seen[s.TapStreamID] = true
			}
		}
	}

	streams := make([]string, 0, len(seen))
	for s := range seen {
		streams = append(streams, s)
	}
	sort.Strings(streams)
	return streams, nil
}
