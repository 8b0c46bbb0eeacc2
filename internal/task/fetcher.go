package task

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blacktop/acestep/internal/api"
	"github.com/blacktop/acestep/internal/output"
)

// Downloader is the client operation the fetcher needs.
type Downloader interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// Fetcher retrieves a succeeded task's artifacts and assembles its record.
// The service reports result items in a fixed order; that order is the
// numbering of the files on disk.
type Fetcher struct {
	Client Downloader

	// Request, when set, fills record fields the service left blank.
	Request *api.GenerationRequest

	// OnDownload, when set, observes each download as it starts. n is
	// 1-based in item order, total the number of items.
	OnDownload func(n, total int, file string)

	now func() time.Time
}

// Fetch decodes rawResult, downloads every artifact in order, and returns
// the record plus the audio payloads (index i holds file i+1). The number of
// items is whatever the service produced; it is not checked against the
// requested batch size, and a success with zero items still yields a record.
func (f *Fetcher) Fetch(ctx context.Context, taskID, rawResult string) (*output.Record, [][]byte, error) {
	items, err := api.DecodeResult(rawResult)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding result for task %s: %w", taskID, err)
	}
	if len(items) == 0 {
		log.Warn("task succeeded without artifacts", "task", taskID)
	}

	audio := make([][]byte, 0, len(items))
	for i, item := range items {
		if f.OnDownload != nil {
			f.OnDownload(i+1, len(items), item.File)
		}
		log.Debug("downloading artifact", "task", taskID, "index", i+1, "path", item.File)
		data, err := f.Client.Download(ctx, item.File)
		if err != nil {
			return nil, nil, fmt.Errorf("downloading artifact %d of task %s: %w", i+1, taskID, err)
		}
		audio = append(audio, data)
	}

	return f.record(taskID, items), audio, nil
}

// record builds the sidecar document from the first item's metadata; all
// items of a batch share prompt, lyrics, and musical parameters. Fields the
// service omitted fall back to what was requested.
func (f *Fetcher) record(taskID string, items []api.ResultItem) *output.Record {
	now := f.now
	if now == nil {
		now = time.Now
	}
	var m api.ResultMetas
	if len(items) > 0 {
		m = items[0].Metas
	}
	rec := &output.Record{
		TaskID:    taskID,
		CreatedAt: now().UTC().Format(time.RFC3339),
		Prompt:    m.Prompt,
		Lyrics:    m.Lyrics,
		Metas: output.Metas{
			BPM:           m.BPM,
			Duration:      m.Duration,
			KeyScale:      m.KeyScale,
			TimeSignature: m.TimeSignature,
		},
		GenerationInfo: m.GenerationInfo,
		SeedValue:      m.SeedValue,
		LMModel:        m.LMModel,
		DitModel:       m.DitModel,
	}
	if req := f.Request; req != nil {
		if rec.Prompt == "" {
			rec.Prompt = req.Prompt
		}
		if rec.Lyrics == "" {
			rec.Lyrics = req.Lyrics
		}
		if rec.Metas.BPM == 0 {
			rec.Metas.BPM = req.BPM
		}
		if rec.Metas.KeyScale == "" {
			rec.Metas.KeyScale = req.KeyScale
		}
		if rec.Metas.TimeSignature == "" {
			rec.Metas.TimeSignature = req.TimeSignature
		}
		if rec.Metas.Duration == 0 && req.AudioDuration > 0 {
			rec.Metas.Duration = req.AudioDuration
		}
	}
	return rec
}
