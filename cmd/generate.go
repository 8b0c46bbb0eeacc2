package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/blacktop/acestep/internal/api"
	"github.com/blacktop/acestep/internal/config"
	"github.com/blacktop/acestep/internal/gen"
	"github.com/blacktop/acestep/internal/output"
	"github.com/blacktop/acestep/internal/task"
	"github.com/blacktop/acestep/internal/tui"
)

var (
	// mode inputs
	genPrompt       string
	genLyrics       string
	genLyricsFile   string
	genInstrumental bool
	genQuery        string
	// generation parameters, shared with the random command
	genModel         string
	genBatch         int
	genDuration      float64
	genBPM           int
	genKey           string
	genTimeSignature string
	genLanguage      string
	genFormat        string
	genSteps         int
	genGuidance      float64
	genSeed          int64
	genInferMethod   string
	genTaskType      string
	genSrcAudio      string
	genRepaintStart  float64
	genRepaintEnd    float64
	genLora          string
	genLoraWeight    float64
	genThinking      bool
	genUseFormat     bool
	genCotCaption    bool
	genCotLanguage   bool
	genInterval      time.Duration
	genTimeout       time.Duration
	genNoProgress    bool
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"gen", "g"},
	Short:   "Generate music from a caption, a query, or nothing at all",
	Long: `Submit a generation to the service and wait for it to finish.

Three ways in, mutually exclusive:
  caption  --prompt with --lyrics (or --instrumental for no vocals)
  simple   --query alone; the service writes the caption and lyrics
  random   no textual input at all

Finished audio lands in the output folder as <task-id>_<n>.<format> next to
a <task-id>.json record of what was generated.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		lyrics, err := readLyrics(cmd)
		if err != nil {
			logger.Error("Cannot read lyrics", "error", err)
			os.Exit(1)
		}
		mode, err := gen.ModeFromInputs(genPrompt, lyrics, genInstrumental, genQuery)
		if err != nil {
			logger.Error("Invalid input combination", "error", err)
			os.Exit(1)
		}
		runGeneration(cmd, mode)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&genPrompt, "prompt", "p", "", "Song description (caption mode)")
	generateCmd.Flags().StringVarP(&genLyrics, "lyrics", "l", "", "Lyrics text (caption mode)")
	generateCmd.Flags().StringVar(&genLyricsFile, "lyrics-file", "", "Read lyrics from a file, - for stdin (caption mode)")
	generateCmd.Flags().BoolVar(&genInstrumental, "instrumental", false, "No vocals; pairs with --prompt")
	generateCmd.Flags().StringVarP(&genQuery, "query", "q", "", "Free-form request; the service writes the caption (simple mode)")
	generateCmd.MarkFlagFilename("lyrics-file")
	generateCmd.MarkFlagsMutuallyExclusive("lyrics", "lyrics-file")
	addGenerationFlags(generateCmd)
}

// addGenerationFlags registers the parameters shared by every command that
// submits a generation. Flag defaults mirror the hard defaults; precedence is
// decided by whether a flag was set, not by its value.
func addGenerationFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&genModel, "model", "m", "", "Model to use (see: acestep models)")
	cmd.Flags().IntVarP(&genBatch, "batch", "b", config.DefaultBatchSize, "Number of songs to generate in one task")
	cmd.Flags().Float64VarP(&genDuration, "duration", "d", config.DefaultAudioDuration, "Audio duration in seconds (-1 lets the service pick)")
	cmd.Flags().IntVar(&genBPM, "bpm", 0, "Beats per minute")
	cmd.Flags().StringVar(&genKey, "key", "", "Key scale (e.g. \"C major\")")
	cmd.Flags().StringVar(&genTimeSignature, "time-signature", "", "Time signature (e.g. 4/4)")
	cmd.Flags().StringVar(&genLanguage, "language", config.DefaultVocalLanguage, "Vocal language")
	cmd.Flags().StringVarP(&genFormat, "format", "f", config.DefaultAudioFormat, "Audio format (mp3, wav, or flac)")
	cmd.Flags().IntVar(&genSteps, "steps", 0, "Diffusion inference steps (0 = service default)")
	cmd.Flags().Float64Var(&genGuidance, "guidance", 0, "Guidance scale (0 = service default)")
	cmd.Flags().Int64Var(&genSeed, "seed", config.DefaultSeed, "Random seed (-1 = randomize)")
	cmd.Flags().StringVar(&genInferMethod, "infer-method", "", "Inference method")
	cmd.Flags().StringVar(&genTaskType, "task-type", config.DefaultTaskType, "Task type (text2music, continuation, or repainting)")
	cmd.Flags().StringVar(&genSrcAudio, "src-audio", "", "Source audio path on the service host (continuation/repainting)")
	cmd.Flags().Float64Var(&genRepaintStart, "repaint-start", 0, "Repainting window start in seconds")
	cmd.Flags().Float64Var(&genRepaintEnd, "repaint-end", 0, "Repainting window end in seconds")
	cmd.Flags().StringVar(&genLora, "lora", "", "LoRA name or path to blend in")
	cmd.Flags().Float64Var(&genLoraWeight, "lora-weight", config.DefaultLoraWeight, "LoRA blend weight (0..1)")
	cmd.Flags().BoolVar(&genThinking, "thinking", config.DefaultThinking, "Let the language model think before writing")
	cmd.Flags().BoolVar(&genUseFormat, "use-format", false, "Have the language model format the lyrics")
	cmd.Flags().BoolVar(&genCotCaption, "cot-caption", false, "Chain-of-thought caption refinement")
	cmd.Flags().BoolVar(&genCotLanguage, "cot-language", false, "Chain-of-thought language detection")
	cmd.Flags().DurationVar(&genInterval, "interval", config.DefaultPollInterval, "Delay between status polls")
	cmd.Flags().DurationVar(&genTimeout, "timeout", config.DefaultPollTimeout, "Give up waiting after this long")
	cmd.Flags().BoolVar(&genNoProgress, "no-progress", false, "Disable the progress spinner")
	cmd.MarkFlagFilename("src-audio")
}

// readLyrics returns the lyrics exactly as given; nothing is trimmed or
// reflowed on the way to the service.
func readLyrics(cmd *cobra.Command) (string, error) {
	if genLyricsFile == "" {
		return genLyrics, nil
	}
	if genLyricsFile == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading lyrics from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(genLyricsFile)
	if err != nil {
		return "", fmt.Errorf("reading lyrics file: %w", err)
	}
	return string(data), nil
}

// collectOverrides turns explicitly set flags into resolution overrides. A
// flag left at its default is absent, so persisted settings still apply.
func collectOverrides(cmd *cobra.Command) config.Overrides {
	var ov config.Overrides
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		ov.APIURL = &apiURL
	}
	if flags.Changed("api-key") {
		ov.APIKey = &apiKey
	}
	if flags.Changed("thinking") {
		ov.Thinking = &genThinking
	}
	if flags.Changed("use-format") {
		ov.UseFormat = &genUseFormat
	}
	if flags.Changed("cot-caption") {
		ov.UseCotCaption = &genCotCaption
	}
	if flags.Changed("cot-language") {
		ov.UseCotLanguage = &genCotLanguage
	}
	if flags.Changed("batch") {
		ov.BatchSize = &genBatch
	}
	if flags.Changed("format") {
		ov.AudioFormat = &genFormat
	}
	if flags.Changed("language") {
		ov.VocalLanguage = &genLanguage
	}
	if flags.Changed("model") {
		ov.Model = &genModel
	}
	if flags.Changed("duration") {
		ov.AudioDuration = &genDuration
	}
	if flags.Changed("bpm") {
		ov.BPM = &genBPM
	}
	if flags.Changed("key") {
		ov.KeyScale = &genKey
	}
	if flags.Changed("time-signature") {
		ov.TimeSignature = &genTimeSignature
	}
	if flags.Changed("steps") {
		ov.InferenceSteps = &genSteps
	}
	if flags.Changed("guidance") {
		ov.GuidanceScale = &genGuidance
	}
	if flags.Changed("seed") {
		ov.Seed = &genSeed
	}
	if flags.Changed("infer-method") {
		ov.InferMethod = &genInferMethod
	}
	if flags.Changed("task-type") {
		ov.TaskType = &genTaskType
	}
	if flags.Changed("src-audio") {
		ov.SrcAudioPath = &genSrcAudio
	}
	if flags.Changed("repaint-start") {
		ov.RepaintingStart = &genRepaintStart
	}
	if flags.Changed("repaint-end") {
		ov.RepaintingEnd = &genRepaintEnd
	}
	if flags.Changed("lora") {
		ov.LoraPath = &genLora
	}
	if flags.Changed("lora-weight") {
		ov.LoraWeight = &genLoraWeight
	}
	if flags.Changed("interval") {
		ov.PollInterval = &genInterval
	}
	if flags.Changed("timeout") {
		ov.PollTimeout = &genTimeout
	}
	return ov
}

// runGeneration is the whole ride: resolve, build, submit, wait, save.
func runGeneration(cmd *cobra.Command, mode gen.Mode) {
	params := config.Resolve(cfg, collectOverrides(cmd))

	req, err := gen.Build(mode, params)
	if err != nil {
		logger.Error("Invalid generation request", "error", err)
		os.Exit(1)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	client := newClient(params)
	taskID, err := client.Submit(ctx, req)
	if err != nil {
		logger.Error("Submission failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Task submitted", "task", taskID)

	outcome := waitForTask(ctx, cancel, client, params, taskID)
	switch outcome.State {
	case task.Succeeded:
		saveArtifacts(ctx, cancel, client, req, params, taskID, outcome.Result)
	case task.Failed:
		logger.Error("Generation failed", "task", taskID, "reason", outcome.FailureReason)
		os.Exit(1)
	case task.TimedOut:
		logger.Warn("Task still processing when the wait budget ran out; fetch it later",
			"task", taskID, "try", "acestep fetch "+taskID)
		os.Exit(1)
	}
}

// showProgress reports whether the animated status line should run. It is
// skipped when stdout is piped or --no-progress is set.
func showProgress() bool {
	return !genNoProgress && isatty.IsTerminal(os.Stdout.Fd())
}

// waitForTask polls until the task settles, with a spinner when stdout is a
// terminal. Exits the process on poll errors and interrupts.
func waitForTask(ctx context.Context, cancel context.CancelFunc, client *api.Client, params config.Params, taskID string) task.Outcome {
	poller := &task.Poller{
		Client:   client,
		Interval: params.PollInterval,
		MaxWait:  params.PollTimeout,
	}

	var mon *tui.Monitor
	if showProgress() {
		mon = tui.NewMonitor(cancel, "generating...")
		poller.OnPoll = func(attempt int, state task.State) {
			mon.Update(fmt.Sprintf("generating (%s, poll %d)", state, attempt))
		}
		mon.Start()
	} else {
		poller.OnPoll = func(attempt int, state task.State) {
			log.Debug("poll", "task", taskID, "attempt", attempt, "state", state)
		}
	}

	outcome, err := poller.Wait(ctx, taskID)
	if mon != nil {
		mon.Stop()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Interrupted; the remote task keeps running", "task", taskID)
		} else {
			logger.Error("Polling failed", "task", taskID, "error", err)
		}
		os.Exit(1)
	}
	return outcome
}

// saveArtifacts downloads everything the task produced and writes it under
// the output folder. req may be nil when re-fetching a past task.
func saveArtifacts(ctx context.Context, cancel context.CancelFunc, client *api.Client, req *api.GenerationRequest, params config.Params, taskID, rawResult string) {
	fetcher := &task.Fetcher{Client: client, Request: req}

	var mon *tui.Monitor
	if showProgress() {
		mon = tui.NewMonitor(cancel, "downloading...")
		fetcher.OnDownload = func(n, total int, file string) {
			mon.Update(fmt.Sprintf("downloading %d/%d", n, total))
		}
		mon.Start()
	}

	rec, audio, err := fetcher.Fetch(ctx, taskID, rawResult)
	if mon != nil {
		mon.Stop()
	}
	if err != nil {
		logger.Error("Fetching artifacts failed", "task", taskID, "error", err)
		os.Exit(1)
	}

	writer := &output.Writer{Root: outputRoot(), Format: params.AudioFormat}
	paths, err := writer.WriteTask(rec, audio)
	if err != nil {
		logger.Error("Saving artifacts failed", "task", taskID, "error", err)
		os.Exit(1)
	}
	for _, path := range paths {
		fmt.Printf("Saved: %s\n", path)
	}
}
