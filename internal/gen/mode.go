// Package gen turns user input into a validated generation request. The
// three ways of asking for music are modeled as a closed sum so that each
// request carries exactly the fields its mode needs.
package gen

import "strings"

// InstrumentalLyrics is the sentinel the service understands as "no vocals".
const InstrumentalLyrics = "[inst]"

// Mode is one of Caption, Simple or Random.
type Mode interface {
	mode()
}

// Caption pins the style caption and the full lyrics verbatim.
type Caption struct {
	Prompt string
	Lyrics string
}

// Simple lets the service derive caption and lyrics from one free-form
// description.
type Simple struct {
	Query string
}

// Random lets the service sample everything on its own.
type Random struct{}

func (Caption) mode() {}
func (Simple) mode()  {}
func (Random) mode()  {}

// ModeFromInputs selects the generation mode from the raw textual inputs of
// an invocation. The inputs are mutually exclusive across modes: caption
// material (prompt, lyrics, the instrumental marker) cannot be combined with
// a sample query, a caption needs lyrics or the marker, and lyrics need a
// caption. No textual input at all selects Random.
func ModeFromInputs(prompt, lyrics string, instrumental bool, query string) (Mode, error) {
	hasPrompt := strings.TrimSpace(prompt) != ""
	hasLyrics := strings.TrimSpace(lyrics) != ""
	hasQuery := strings.TrimSpace(query) != ""
	hasCaptionInput := hasPrompt || hasLyrics || instrumental

	if hasCaptionInput && hasQuery {
		return nil, &ValidationError{Field: "query", Reason: "cannot be combined with a caption, lyrics or the instrumental marker"}
	}
	if hasLyrics && instrumental {
		return nil, &ValidationError{Field: "lyrics", Reason: "cannot be combined with the instrumental marker"}
	}

	switch {
	case hasPrompt:
		if instrumental {
			return Caption{Prompt: prompt, Lyrics: InstrumentalLyrics}, nil
		}
		if !hasLyrics {
			return nil, &ValidationError{Field: "lyrics", Reason: "a caption needs lyrics or the instrumental marker"}
		}
		return Caption{Prompt: prompt, Lyrics: lyrics}, nil
	case hasLyrics:
		return nil, &ValidationError{Field: "prompt", Reason: "lyrics need a caption"}
	case instrumental:
		return nil, &ValidationError{Field: "prompt", Reason: "the instrumental marker needs a caption"}
	case hasQuery:
		return Simple{Query: query}, nil
	}
	return Random{}, nil
}
