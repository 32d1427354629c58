package commitlog

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileCheckpoint is the default StoreCheckpoint: a small JSON file written
// next to the segment files. It is deliberately simple (no mmap, no binary
// layout) since it's read once at startup and written only at clean
// shutdown; the flush services do not write it.
type FileCheckpoint struct {
	path string
}

// NewFileCheckpoint returns a checkpoint backed by <dir>/checkpoint.json.
func NewFileCheckpoint(dir string) *FileCheckpoint {
	return &FileCheckpoint{path: filepath.Join(dir, "checkpoint.json")}
}

// Load reads the checkpoint file, returning a zero CheckpointState (and no
// error) if it doesn't exist yet — a brand-new store starts clean.
func (c *FileCheckpoint) Load() (CheckpointState, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckpointState{}, nil
		}
		return CheckpointState{}, errors.Wrap(err, "reading checkpoint")
	}

	var state CheckpointState
	if err := json.Unmarshal(data, &state); err != nil {
		return CheckpointState{}, errors.Wrap(err, "parsing checkpoint")
	}
	return state, nil
}

// Save atomically overwrites the checkpoint file with state.
func (c *FileCheckpoint) Save(state CheckpointState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshaling checkpoint")
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "writing checkpoint")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return errors.Wrap(err, "renaming checkpoint")
	}
	return nil
}
