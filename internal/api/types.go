// Package api holds the wire types and the HTTP client for the ACE-Step
// generation service. Every endpoint except the raw audio download answers
// with one envelope shape; the task result payload inside it is itself a
// JSON-encoded string and needs a second decode (see DecodeResult).
package api

import (
	"encoding/json"
	"fmt"
)

// Envelope wraps every JSON response from the service.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	Code      int             `json:"code"`
	Error     string          `json:"error"`
	Timestamp int64           `json:"timestamp"`
}

// GenerationRequest is the param_obj payload of POST /release_task.
//
// Exactly one generation mode is encoded per request: a pinned caption plus
// verbatim lyrics (SampleMode false), a free-form sample query (SampleMode
// true, SampleQuery set), or a fully random sample (SampleMode true,
// SampleQuery empty).
type GenerationRequest struct {
	SampleMode  bool   `json:"sample_mode"`
	Prompt      string `json:"prompt"`
	Lyrics      string `json:"lyrics"`
	SampleQuery string `json:"sample_query"`

	Thinking       bool   `json:"thinking"`
	UseFormat      bool   `json:"use_format"`
	UseCotCaption  bool   `json:"use_cot_caption"`
	UseCotLanguage bool   `json:"use_cot_language"`
	Model          string `json:"model,omitempty"`
	BatchSize      int    `json:"batch_size" validate:"min=1"`

	AudioDuration float64 `json:"audio_duration" validate:"min=-1"`
	BPM           int     `json:"bpm,omitempty" validate:"min=0"`
	KeyScale      string  `json:"key_scale,omitempty"`
	TimeSignature string  `json:"time_signature,omitempty"`
	VocalLanguage string  `json:"vocal_language"`
	AudioFormat   string  `json:"audio_format" validate:"oneof=mp3 wav flac"`

	InferenceSteps int     `json:"inference_steps,omitempty" validate:"min=0"`
	GuidanceScale  float64 `json:"guidance_scale,omitempty" validate:"min=0"`
	Seed           int64   `json:"seed" validate:"min=-1"`
	InferMethod    string  `json:"infer_method,omitempty"`

	TaskType        string  `json:"task_type" validate:"oneof=text2music continuation repainting"`
	SrcAudioPath    string  `json:"src_audio_path,omitempty"`
	RepaintingStart float64 `json:"repainting_start,omitempty" validate:"min=0"`
	RepaintingEnd   float64 `json:"repainting_end,omitempty"`

	LoraNameOrPath string  `json:"lora_name_or_path,omitempty"`
	LoraWeight     float64 `json:"lora_weight,omitempty" validate:"omitempty,min=0,max=1"`
}

// TaskStatus is the numeric status reported for a remote task.
type TaskStatus int

const (
	StatusProcessing TaskStatus = 0
	StatusSuccess    TaskStatus = 1
	StatusFailed     TaskStatus = 2
)

func (s TaskStatus) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether the status ends the polling loop.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// TaskState is one entry of a /query_result response. Result holds the inner
// JSON string on success and the failure reason on failure.
type TaskState struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
	Result string     `json:"result"`
}

// ResultItem describes one generated file inside a decoded result payload.
type ResultItem struct {
	File  string      `json:"file"`
	Metas ResultMetas `json:"metas"`
}

// ResultMetas carries the attributes the service reports per generated file.
// Prompt and lyrics are the values actually synthesized, which may have been
// rewritten by the service's language model. Shapes the service does not
// document are kept raw.
type ResultMetas struct {
	Prompt         string          `json:"prompt,omitempty"`
	Lyrics         string          `json:"lyrics,omitempty"`
	BPM            int             `json:"bpm,omitempty"`
	Duration       float64         `json:"duration,omitempty"`
	KeyScale       string          `json:"keyscale,omitempty"`
	TimeSignature  string          `json:"time_signature,omitempty"`
	GenerationInfo json.RawMessage `json:"generation_info,omitempty"`
	SeedValue      json.RawMessage `json:"seed_value,omitempty"`
	LMModel        string          `json:"lm_model,omitempty"`
	DitModel       string          `json:"dit_model,omitempty"`
}

// DecodeResult performs the second stage of the result decode: the envelope
// delivers result as a JSON-encoded string whose content is the item array.
// An empty string decodes to no items.
func DecodeResult(raw string) ([]ResultItem, error) {
	if raw == "" {
		return nil, nil
	}
	var items []ResultItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode result payload: %w", err)
	}
	return items, nil
}
