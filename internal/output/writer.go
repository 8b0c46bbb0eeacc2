package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Writer persists generation artifacts under Root. Filenames are derived
// from the task id alone, so re-running a fetch for the same task overwrites
// its previous artifacts instead of accumulating copies.
type Writer struct {
	Root   string
	Format string // audio file extension, without the dot
}

// EnsureRoot creates the output directory if it does not exist yet.
func (w *Writer) EnsureRoot() error {
	return os.MkdirAll(w.Root, 0o755)
}

// RecordPath returns where the JSON record for taskID lives.
func (w *Writer) RecordPath(taskID string) string {
	return filepath.Join(w.Root, taskID+".json")
}

// AudioPath returns where the n-th (1-based) audio file for taskID lives.
func (w *Writer) AudioPath(taskID string, n int) string {
	return filepath.Join(w.Root, fmt.Sprintf("%s_%d.%s", taskID, n, w.Format))
}

// WriteRecord writes the task's JSON record atomically.
func (w *Writer) WriteRecord(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record for task %s: %w", rec.TaskID, err)
	}
	return writeAtomic(w.RecordPath(rec.TaskID), append(data, '\n'))
}

// WriteAudio writes the n-th (1-based) audio file for taskID atomically and
// returns the path it ended up at.
func (w *Writer) WriteAudio(taskID string, n int, data []byte) (string, error) {
	path := w.AudioPath(taskID, n)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteTask persists a task's audio payloads and its record in one go. Audio
// files are numbered in payload order; the record's file list is filled from
// what was actually written. Returns every path written, record last.
func (w *Writer) WriteTask(rec *Record, audio [][]byte) ([]string, error) {
	if err := w.EnsureRoot(); err != nil {
		return nil, fmt.Errorf("creating output dir %s: %w", w.Root, err)
	}
	paths := make([]string, 0, len(audio)+1)
	rec.Files = rec.Files[:0]
	for i, data := range audio {
		path, err := w.WriteAudio(rec.TaskID, i+1, data)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
		rec.Files = append(rec.Files, filepath.Base(path))
	}
	if err := w.WriteRecord(rec); err != nil {
		return paths, err
	}
	return append(paths, w.RecordPath(rec.TaskID)), nil
}

// writeAtomic lands data at path via a uniquely named sibling and a rename,
// so a crash mid-write never leaves a truncated artifact under the final
// name.
func writeAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString()[:8])
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalizing %s: %w", filepath.Base(path), err)
	}
	return nil
}
