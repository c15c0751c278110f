package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// SessionMetadata is a session's small persisted header: who it belongs to
// and when it was last touched. The message buffer itself lives alongside
// it in messagesFile, not inlined here, so resuming a session doesn't
// require parsing its full transcript just to list it.
type SessionMetadata struct {
	ID              string    `json:"id"`
	CWD             string    `json:"cwd"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ParentSessionID string    `json:"parent_session_id,omitempty"`
}

const metadataFile = "metadata.json"

func saveMetadata(dir string, meta SessionMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metadataFile), data, 0644)
}

func loadMetadata(dir string) (SessionMetadata, error) {
	var meta SessionMetadata
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}
