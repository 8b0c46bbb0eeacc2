package gen

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/blacktop/acestep/internal/api"
	"github.com/blacktop/acestep/internal/config"
)

// ValidationError reports an invalid or contradictory request parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report offending fields under their wire names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Build constructs the request payload for one generation mode from the
// resolved parameters. Lyrics pass through byte for byte: the service
// produces incoherent output from partial lyrics, so they are never trimmed,
// truncated or reflowed here. All violations fail with a *ValidationError;
// nothing is coerced silently.
func Build(mode Mode, p config.Params) (*api.GenerationRequest, error) {
	req := &api.GenerationRequest{
		Thinking:       p.Thinking,
		UseFormat:      p.UseFormat,
		UseCotCaption:  p.UseCotCaption,
		UseCotLanguage: p.UseCotLanguage,
		Model:          p.Model,
		BatchSize:      p.BatchSize,
		AudioDuration:  p.AudioDuration,
		BPM:            p.BPM,
		KeyScale:       p.KeyScale,
		TimeSignature:  p.TimeSignature,
		VocalLanguage:  p.VocalLanguage,
		AudioFormat:    p.AudioFormat,
		InferenceSteps: p.InferenceSteps,
		GuidanceScale:  p.GuidanceScale,
		Seed:           p.Seed,
		InferMethod:    p.InferMethod,
		TaskType:       p.TaskType,
		SrcAudioPath:   p.SrcAudioPath,
	}
	if req.TaskType == "" {
		req.TaskType = config.DefaultTaskType
	}
	if p.LoraPath != "" {
		req.LoraNameOrPath = p.LoraPath
		req.LoraWeight = p.LoraWeight
	}
	if req.TaskType == "repainting" {
		req.RepaintingStart = p.RepaintingStart
		req.RepaintingEnd = p.RepaintingEnd
	}

	switch m := mode.(type) {
	case Caption:
		if strings.TrimSpace(m.Prompt) == "" {
			return nil, &ValidationError{Field: "prompt", Reason: "caption mode needs a caption"}
		}
		if m.Lyrics == "" {
			return nil, &ValidationError{Field: "lyrics", Reason: "caption mode needs lyrics or the instrumental marker"}
		}
		req.SampleMode = false
		req.Prompt = m.Prompt
		req.Lyrics = m.Lyrics
	case Simple:
		if strings.TrimSpace(m.Query) == "" {
			return nil, &ValidationError{Field: "sample_query", Reason: "simple mode needs a description"}
		}
		req.SampleMode = true
		req.SampleQuery = m.Query
	case Random:
		req.SampleMode = true
		req.SampleQuery = ""
	default:
		return nil, &ValidationError{Field: "mode", Reason: "unknown generation mode"}
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

func validateRequest(req *api.GenerationRequest) error {
	switch req.TaskType {
	case "continuation", "repainting":
		if req.SrcAudioPath == "" {
			return &ValidationError{Field: "src_audio_path", Reason: fmt.Sprintf("required for task type %q", req.TaskType)}
		}
	}
	if req.TaskType == "repainting" {
		if req.RepaintingStart < 0 {
			return &ValidationError{Field: "repainting_start", Reason: "must not be negative"}
		}
		if req.RepaintingEnd <= req.RepaintingStart {
			return &ValidationError{Field: "repainting_end", Reason: fmt.Sprintf("must be greater than repainting_start (%g)", req.RepaintingStart)}
		}
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fe.Field(), Reason: reasonFor(fe)}
		}
		return err
	}
	return nil
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", strings.Join(strings.Fields(fe.Param()), ", "))
	}
	return fmt.Sprintf("fails %q constraint", fe.Tag())
}
