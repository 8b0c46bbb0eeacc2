package gen

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/blacktop/acestep/internal/api"
	"github.com/blacktop/acestep/internal/config"
)

// baseParams resolves the hard defaults, the same starting point every real
// invocation has.
func baseParams() config.Params {
	return config.Resolve(nil, config.Overrides{})
}

func buildErr(t *testing.T, mode Mode, p config.Params) *ValidationError {
	t.Helper()
	_, err := Build(mode, p)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return verr
}

func TestBuild_CaptionRequest(t *testing.T) {
	p := baseParams()
	req, err := Build(Caption{Prompt: "upbeat funk", Lyrics: "Get up\nget down"}, p)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if req.SampleMode {
		t.Error("caption mode must not set sample_mode")
	}
	if req.Prompt != "upbeat funk" || req.Lyrics != "Get up\nget down" {
		t.Errorf("prompt/lyrics = %q / %q", req.Prompt, req.Lyrics)
	}
	if req.SampleQuery != "" {
		t.Errorf("sample_query = %q, want empty", req.SampleQuery)
	}
	if !req.Thinking {
		t.Error("thinking default should carry into the request")
	}
	if req.TaskType != "text2music" {
		t.Errorf("task_type = %q, want text2music", req.TaskType)
	}
	if req.BatchSize != 1 || req.AudioFormat != "mp3" || req.Seed != -1 {
		t.Errorf("defaults not carried: batch=%d format=%q seed=%d", req.BatchSize, req.AudioFormat, req.Seed)
	}
}

func TestBuild_SimpleRequest(t *testing.T) {
	req, err := Build(Simple{Query: "sad piano for studying"}, baseParams())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !req.SampleMode {
		t.Error("simple mode must set sample_mode")
	}
	if req.SampleQuery != "sad piano for studying" {
		t.Errorf("sample_query = %q", req.SampleQuery)
	}
	if req.Prompt != "" || req.Lyrics != "" {
		t.Errorf("prompt/lyrics must stay empty, got %q / %q", req.Prompt, req.Lyrics)
	}
}

func TestBuild_RandomRequest(t *testing.T) {
	req, err := Build(Random{}, baseParams())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !req.SampleMode {
		t.Error("random mode must set sample_mode")
	}
	if req.SampleQuery != "" || req.Prompt != "" || req.Lyrics != "" {
		t.Error("random mode must carry no textual input")
	}
}

func TestBuild_LyricsByteIdentical(t *testing.T) {
	// Deliberately ugly: leading/trailing whitespace, blank lines, tabs,
	// section tags, windows line endings, non-ascii. All of it must reach
	// the wire untouched.
	lyrics := "  [Verse 1]\r\n\tNeon rain on empty streets  \n\n\n[Chorus]\nwe were ∞ young\n日本語のライン\n   trailing spaces   \n"

	req, err := Build(Caption{Prompt: "synthwave", Lyrics: lyrics}, baseParams())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if req.Lyrics != lyrics {
		t.Fatalf("lyrics were altered:\n in: %q\nout: %q", lyrics, req.Lyrics)
	}

	// They also survive JSON encoding byte for byte.
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded api.GenerationRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Lyrics != lyrics {
		t.Fatalf("lyrics altered by the wire encoding:\n in: %q\nout: %q", lyrics, decoded.Lyrics)
	}
}

// Long randomized lyrics, fixed seed so a failure reproduces. Whatever the
// generator spits out must come back out of the wire encoding byte for byte.
func TestBuild_RandomLyricsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := []rune("abcdefghijklmnopqrstuvwxyz ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789\t,.!?'\"()∞♪日本語àéîöß")

	var sb strings.Builder
	lines := 150 + rng.Intn(100)
	for i := 0; i < lines; i++ {
		switch rng.Intn(6) {
		case 0:
			// blank line
		case 1:
			fmt.Fprintf(&sb, "[Verse %d]", i)
		default:
			n := 1 + rng.Intn(60)
			for j := 0; j < n; j++ {
				sb.WriteRune(pool[rng.Intn(len(pool))])
			}
		}
		if rng.Intn(8) == 0 {
			sb.WriteString("\r\n")
		} else {
			sb.WriteString("\n")
		}
	}
	lyrics := sb.String()

	req, err := Build(Caption{Prompt: "endurance test", Lyrics: lyrics}, baseParams())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if req.Lyrics != lyrics {
		t.Fatal("lyrics were altered before encoding")
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded api.GenerationRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Lyrics != lyrics {
		t.Fatal("lyrics altered by the wire encoding")
	}
}

func TestBuild_EmptyModeContent(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		field string
	}{
		{"caption without prompt", Caption{Lyrics: "la la"}, "prompt"},
		{"caption with blank prompt", Caption{Prompt: "   ", Lyrics: "la la"}, "prompt"},
		{"caption without lyrics", Caption{Prompt: "upbeat funk"}, "lyrics"},
		{"simple without query", Simple{}, "sample_query"},
		{"simple with blank query", Simple{Query: "  \t"}, "sample_query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if verr := buildErr(t, tt.mode, baseParams()); verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}

	// The instrumental marker counts as lyrics, not as absence.
	if _, err := Build(Caption{Prompt: "lo-fi beats", Lyrics: InstrumentalLyrics}, baseParams()); err != nil {
		t.Errorf("instrumental caption rejected: %v", err)
	}
}

func TestBuild_ScalarValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Params)
		field  string
	}{
		{"zero batch", func(p *config.Params) { p.BatchSize = 0 }, "batch_size"},
		{"negative batch", func(p *config.Params) { p.BatchSize = -3 }, "batch_size"},
		{"seed below -1", func(p *config.Params) { p.Seed = -2 }, "seed"},
		{"unknown audio format", func(p *config.Params) { p.AudioFormat = "ogg" }, "audio_format"},
		{"unknown task type", func(p *config.Params) { p.TaskType = "remix" }, "task_type"},
		{"lora weight above 1", func(p *config.Params) { p.LoraPath = "my-lora"; p.LoraWeight = 1.5 }, "lora_weight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams()
			tt.mutate(&p)
			verr := buildErr(t, Random{}, p)
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q (reason: %s)", verr.Field, tt.field, verr.Reason)
			}
		})
	}
}

func TestBuild_ContinuationNeedsSourceAudio(t *testing.T) {
	p := baseParams()
	p.TaskType = "continuation"

	verr := buildErr(t, Random{}, p)
	if verr.Field != "src_audio_path" {
		t.Errorf("field = %q, want src_audio_path", verr.Field)
	}

	p.SrcAudioPath = "/data/uploads/take1.wav"
	req, err := Build(Random{}, p)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if req.SrcAudioPath != "/data/uploads/take1.wav" {
		t.Errorf("src_audio_path = %q", req.SrcAudioPath)
	}
}

func TestBuild_RepaintingWindow(t *testing.T) {
	base := func() config.Params {
		p := baseParams()
		p.TaskType = "repainting"
		p.SrcAudioPath = "/data/uploads/take1.wav"
		return p
	}

	t.Run("missing source", func(t *testing.T) {
		p := base()
		p.SrcAudioPath = ""
		if verr := buildErr(t, Random{}, p); verr.Field != "src_audio_path" {
			t.Errorf("field = %q", verr.Field)
		}
	})

	t.Run("negative start", func(t *testing.T) {
		p := base()
		p.RepaintingStart = -1
		p.RepaintingEnd = 10
		if verr := buildErr(t, Random{}, p); verr.Field != "repainting_start" {
			t.Errorf("field = %q", verr.Field)
		}
	})

	t.Run("end not after start", func(t *testing.T) {
		p := base()
		p.RepaintingStart = 10
		p.RepaintingEnd = 10
		if verr := buildErr(t, Random{}, p); verr.Field != "repainting_end" {
			t.Errorf("field = %q", verr.Field)
		}
	})

	t.Run("valid window", func(t *testing.T) {
		p := base()
		p.RepaintingStart = 12.5
		p.RepaintingEnd = 30
		req, err := Build(Random{}, p)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if req.RepaintingStart != 12.5 || req.RepaintingEnd != 30 {
			t.Errorf("window = %g..%g", req.RepaintingStart, req.RepaintingEnd)
		}
	})

	t.Run("window ignored outside repainting", func(t *testing.T) {
		p := baseParams()
		p.RepaintingStart = 12.5
		p.RepaintingEnd = 30
		req, err := Build(Random{}, p)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if req.RepaintingStart != 0 || req.RepaintingEnd != 0 {
			t.Errorf("text2music request carries a repaint window: %g..%g", req.RepaintingStart, req.RepaintingEnd)
		}
	})
}

func TestBuild_LoraOnlyWithPath(t *testing.T) {
	p := baseParams()
	req, err := Build(Random{}, p)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if req.LoraNameOrPath != "" || req.LoraWeight != 0 {
		t.Errorf("lora fields set without a lora: %q / %g", req.LoraNameOrPath, req.LoraWeight)
	}

	p.LoraPath = "styles/citypop"
	p.LoraWeight = 0.7
	req, err = Build(Random{}, p)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if req.LoraNameOrPath != "styles/citypop" || req.LoraWeight != 0.7 {
		t.Errorf("lora = %q weight %g", req.LoraNameOrPath, req.LoraWeight)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Field: "batch_size", Reason: "must be at least 1"}
	if !strings.Contains(err.Error(), "batch_size") {
		t.Errorf("message should name the field: %q", err.Error())
	}
}
