// Package output owns the on-disk layout of finished generations: one JSON
// record plus numbered audio files per task, all under a single root.
package output

import "encoding/json"

// Record is the sidecar document written next to a task's audio files. It
// captures what was asked for and what the service reported back, so a
// generation can be understood (and reproduced) without the original shell
// history.
type Record struct {
	TaskID    string `json:"task_id"`
	CreatedAt string `json:"created_at"`

	Prompt string `json:"prompt"`
	Lyrics string `json:"lyrics"`

	Metas Metas `json:"metas"`

	GenerationInfo json.RawMessage `json:"generation_info,omitempty"`
	SeedValue      json.RawMessage `json:"seed_value,omitempty"`

	LMModel  string `json:"lm_model,omitempty"`
	DitModel string `json:"dit_model,omitempty"`

	Files []string `json:"files"`
}

// Metas is the musical metadata block of a Record.
type Metas struct {
	BPM           int     `json:"bpm,omitempty"`
	Duration      float64 `json:"duration,omitempty"`
	KeyScale      string  `json:"keyscale,omitempty"`
	TimeSignature string  `json:"time_signature,omitempty"`
}
