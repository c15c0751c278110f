package session

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/jg-phare/goat/pkg/types"
)

const (
	messagesFile = "messages.jsonl"
	maxLineSize  = 10 * 1024 * 1024 // 10 MB
)

// saveMessages atomically overwrites path with one JSON-encoded
// types.Message per line. AppState.Messages is mutated in place by
// context.Compact (it rewrites the buffer, it doesn't append to it), so an
// append-only log would drift from what the executor actually holds; a
// temp-file-then-rename, the same idiom pkg/memory uses for MEMORY.md,
// keeps the persisted copy an exact mirror with no risk of a half-written
// file surviving a crash.
func saveMessages(path string, messages []types.Message) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, m := range messages {
		if err := enc.Encode(m); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// loadMessages reads a session's persisted message buffer back in order.
// Corrupt lines are skipped rather than failing the whole load.
func loadMessages(path string) ([]types.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // new session, nothing persisted yet
		}
		return nil, err
	}
	defer f.Close()

	var messages []types.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m types.Message
		if err := json.Unmarshal(line, &m); err != nil {
			continue // skip corrupt lines
		}
		messages = append(messages, m)
	}
	if err := scanner.Err(); err != nil {
		return messages, err
	}
	return messages, nil
}
