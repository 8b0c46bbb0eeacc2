package config

import "time"

// Hard defaults, the lowest precedence tier.
const (
	DefaultAPIURL        = "http://127.0.0.1:8001"
	DefaultThinking      = true
	DefaultBatchSize     = 1
	DefaultAudioFormat   = "mp3"
	DefaultVocalLanguage = "en"
	DefaultAudioDuration = -1 // service picks a duration
	DefaultSeed          = -1 // service randomizes
	DefaultTaskType      = "text2music"
	DefaultLoraWeight    = 1.0
	DefaultPollInterval  = 3 * time.Second
	DefaultPollTimeout   = 10 * time.Minute
)

// Params are the effective parameters of one invocation, computed fresh on
// every run. Nothing here is ever written back to the persisted document.
type Params struct {
	APIURL string
	APIKey string

	Thinking       bool
	UseFormat      bool
	UseCotCaption  bool
	UseCotLanguage bool
	BatchSize      int
	AudioFormat    string
	VocalLanguage  string

	Model         string
	AudioDuration float64
	BPM           int
	KeyScale      string
	TimeSignature string

	InferenceSteps int
	GuidanceScale  float64
	Seed           int64
	InferMethod    string

	TaskType        string
	SrcAudioPath    string
	RepaintingStart float64
	RepaintingEnd   float64

	LoraPath   string
	LoraWeight float64

	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Overrides carries the explicit command-line values of one invocation.
// A nil field means the flag was not given and falls through silently to the
// persisted document, then to the hard defaults.
type Overrides struct {
	APIURL *string
	APIKey *string

	Thinking       *bool
	UseFormat      *bool
	UseCotCaption  *bool
	UseCotLanguage *bool
	BatchSize      *int
	AudioFormat    *string
	VocalLanguage  *string

	Model         *string
	AudioDuration *float64
	BPM           *int
	KeyScale      *string
	TimeSignature *string

	InferenceSteps *int
	GuidanceScale  *float64
	Seed           *int64
	InferMethod    *string

	TaskType        *string
	SrcAudioPath    *string
	RepaintingStart *float64
	RepaintingEnd   *float64

	LoraPath   *string
	LoraWeight *float64

	PollInterval *time.Duration
	PollTimeout  *time.Duration
}

// Resolve merges the three tiers into effective parameters: explicit flags
// beat the persisted document, which beats the hard defaults. cfg is read
// only; may be nil.
func Resolve(cfg *Config, ov Overrides) Params {
	p := Params{
		APIURL:        DefaultAPIURL,
		Thinking:      DefaultThinking,
		BatchSize:     DefaultBatchSize,
		AudioFormat:   DefaultAudioFormat,
		VocalLanguage: DefaultVocalLanguage,
		AudioDuration: DefaultAudioDuration,
		Seed:          DefaultSeed,
		TaskType:      DefaultTaskType,
		LoraWeight:    DefaultLoraWeight,
		PollInterval:  DefaultPollInterval,
		PollTimeout:   DefaultPollTimeout,
	}

	if cfg != nil {
		if cfg.APIURL != "" {
			p.APIURL = cfg.APIURL
		}
		if cfg.APIKey != "" {
			p.APIKey = cfg.APIKey
		}
		g := cfg.Generation
		if g.Thinking != nil {
			p.Thinking = *g.Thinking
		}
		if g.UseFormat != nil {
			p.UseFormat = *g.UseFormat
		}
		if g.UseCotCaption != nil {
			p.UseCotCaption = *g.UseCotCaption
		}
		if g.UseCotLanguage != nil {
			p.UseCotLanguage = *g.UseCotLanguage
		}
		if g.BatchSize != 0 {
			p.BatchSize = g.BatchSize
		}
		if g.AudioFormat != "" {
			p.AudioFormat = g.AudioFormat
		}
		if g.VocalLanguage != "" {
			p.VocalLanguage = g.VocalLanguage
		}
	}

	if ov.APIURL != nil {
		p.APIURL = *ov.APIURL
	}
	if ov.APIKey != nil {
		p.APIKey = *ov.APIKey
	}
	if ov.Thinking != nil {
		p.Thinking = *ov.Thinking
	}
	if ov.UseFormat != nil {
		p.UseFormat = *ov.UseFormat
	}
	if ov.UseCotCaption != nil {
		p.UseCotCaption = *ov.UseCotCaption
	}
	if ov.UseCotLanguage != nil {
		p.UseCotLanguage = *ov.UseCotLanguage
	}
	if ov.BatchSize != nil {
		p.BatchSize = *ov.BatchSize
	}
	if ov.AudioFormat != nil {
		p.AudioFormat = *ov.AudioFormat
	}
	if ov.VocalLanguage != nil {
		p.VocalLanguage = *ov.VocalLanguage
	}
	if ov.Model != nil {
		p.Model = *ov.Model
	}
	if ov.AudioDuration != nil {
		p.AudioDuration = *ov.AudioDuration
	}
	if ov.BPM != nil {
		p.BPM = *ov.BPM
	}
	if ov.KeyScale != nil {
		p.KeyScale = *ov.KeyScale
	}
	if ov.TimeSignature != nil {
		p.TimeSignature = *ov.TimeSignature
	}
	if ov.InferenceSteps != nil {
		p.InferenceSteps = *ov.InferenceSteps
	}
	if ov.GuidanceScale != nil {
		p.GuidanceScale = *ov.GuidanceScale
	}
	if ov.Seed != nil {
		p.Seed = *ov.Seed
	}
	if ov.InferMethod != nil {
		p.InferMethod = *ov.InferMethod
	}
	if ov.TaskType != nil {
		p.TaskType = *ov.TaskType
	}
	if ov.SrcAudioPath != nil {
		p.SrcAudioPath = *ov.SrcAudioPath
	}
	if ov.RepaintingStart != nil {
		p.RepaintingStart = *ov.RepaintingStart
	}
	if ov.RepaintingEnd != nil {
		p.RepaintingEnd = *ov.RepaintingEnd
	}
	if ov.LoraPath != nil {
		p.LoraPath = *ov.LoraPath
	}
	if ov.LoraWeight != nil {
		p.LoraWeight = *ov.LoraWeight
	}
	if ov.PollInterval != nil {
		p.PollInterval = *ov.PollInterval
	}
	if ov.PollTimeout != nil {
		p.PollTimeout = *ov.PollTimeout
	}

	return p
}
