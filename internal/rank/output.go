package rank

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteRankings writes the ranking as indented JSON to path.
func WriteRankings(r *Rankings, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rankings: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write rankings: %w", err)
	}
	return nil
}
