package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"tinct/internal/batch"
	"tinct/internal/classify"
	"tinct/internal/colorize"
	"tinct/internal/config"
	"tinct/internal/files"
	"tinct/internal/history"
	"tinct/internal/logging"
	"tinct/internal/memory"
	"tinct/internal/settings"
	"tinct/internal/tracker"
)

type runFlags struct {
	inputDir     string
	outputDir    string
	settingsFile string
	referenceDir string
	references   []string
	style        string
	seed         int
	steps        int
	topK         int
	priority     int
	recursive    bool
	overwrite    bool
	preview      bool
	noProgress   bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [images...]",
		Short: "Colorize a batch of images",
		Long: `Colorize the given images, or everything under --input-dir.
Results land in the output directory with a _colorized suffix.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.inputDir, "input-dir", "i", "", "Directory to scan for images")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for colorized results")
	cmd.Flags().StringVar(&flags.settingsFile, "settings", "", "JSON file with per-image settings overrides")
	cmd.Flags().StringSliceVar(&flags.references, "reference", nil, "Reference image guiding the palette (repeatable)")
	cmd.Flags().StringVar(&flags.referenceDir, "reference-dir", "", "Directory of reference images guiding the palette")
	cmd.Flags().StringVar(&flags.style, "style", "", `Colorization style: "line" or "line + shadow"`)
	cmd.Flags().IntVar(&flags.seed, "seed", 0, "Random seed (0 lets the backend pick)")
	cmd.Flags().IntVar(&flags.steps, "steps", 0, "Inference steps per image")
	cmd.Flags().IntVar(&flags.topK, "top-k", 0, "Top-k sampling bound")
	cmd.Flags().IntVar(&flags.priority, "priority", 0, "Queue priority for these images")
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "Descend into subdirectories of --input-dir")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Overwrite existing outputs instead of numbering around them")
	cmd.Flags().BoolVar(&flags.preview, "preview", false, "Process one image and wait for approval before the rest")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

func runBatch(cmd *cobra.Command, ctx *commandContext, args []string, flags runFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	defaults := cfg.BatchSettings()
	applyFlagOverrides(cmd, &defaults, flags)
	if strings.TrimSpace(flags.referenceDir) != "" {
		refs, err := files.ScanDirectory(flags.referenceDir, false)
		if err != nil {
			return newExitError(exitFailure, err.Error())
		}
		defaults.ReferenceImages = append(defaults.ReferenceImages, refs...)
	}
	if err := settings.ValidateStrict(settings.StrictMap(defaults)); err != nil {
		return newExitError(exitFailure, err.Error())
	}

	outputDir := cfg.Paths.OutputDir
	if strings.TrimSpace(flags.outputDir) != "" {
		outputDir, err = config.ExpandPath(flags.outputDir)
		if err != nil {
			return newExitError(exitFailure, err.Error())
		}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return newExitError(exitFailure, fmt.Sprintf("create output directory: %v", err))
	}

	inputs, err := collectInputs(args, flags.inputDir, defaults.Recursive)
	if err != nil {
		return newExitError(exitFailure, err.Error())
	}
	if len(inputs) == 0 {
		return newExitError(exitFailure, "no input images given; pass files or --input-dir")
	}

	// One writer per output directory.
	lock := flock.New(filepath.Join(outputDir, ".tinct.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return newExitError(exitFailure, fmt.Sprintf("acquire run lock: %v", err))
	}
	if !locked {
		return newExitError(exitFailure, fmt.Sprintf("another tinct run is writing to %s", outputDir))
	}
	defer func() { _ = lock.Unlock() }()

	resolver := settings.NewResolver(defaults, logger)
	settingsFile := flags.settingsFile
	if settingsFile == "" {
		settingsFile = cfg.Batch.SettingsFile
	}
	if settingsFile != "" {
		if err := resolver.LoadFile(settingsFile); err != nil {
			return newExitError(exitFailure, err.Error())
		}
	}

	backend := colorize.NewHTTPColorizer(cfg.Colorizer.Endpoint, time.Duration(cfg.Colorizer.TimeoutSeconds)*time.Second)
	pipeline := colorize.NewPipeline(backend, logger)
	gate := memory.NewGate(backend, logger)
	classifier := classify.New(logger)

	controller := batch.NewController(pipeline, resolver, gate, classifier, batch.Options{
		OutputDir:       outputDir,
		MemoryThreshold: cfg.Memory.Threshold,
	}, logger)

	added, err := controller.AddImages(inputs, flags.priority)
	if err != nil {
		return newExitError(exitFailure, err.Error())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Colorizing %d image(s) into %s\n", added, outputDir)

	runCtx, cancelRun := context.WithCancel(cmd.Context())
	defer cancelRun()

	interrupted := watchInterrupts(controller, logger)

	stopProgress := startProgress(controller, added, flags.noProgress)
	runErr := controller.Run(runCtx)
	stopProgress()
	if runErr != nil {
		return newExitError(exitFailure, runErr.Error())
	}

	for controller.IsWaitingForPreviewApproval() {
		done, err := handlePreview(cmd, controller, resolver)
		if err != nil {
			return err
		}
		if done {
			break
		}
		stopProgress = startProgress(controller, added, flags.noProgress)
		runErr = controller.Run(runCtx)
		stopProgress()
		if runErr != nil {
			return newExitError(exitFailure, runErr.Error())
		}
	}

	summary := controller.Summary()
	printSummary(cmd, summary, controller.Records())
	archiveRun(cmd, cfg, logger, summary, controller.Records())

	if interrupted.Load() && summary.Cancelled > 0 {
		return newExitError(exitInterrupted, "")
	}
	if summary.Failed > 0 {
		return newExitError(exitPartial, "")
	}
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, defaults *settings.Settings, flags runFlags) {
	set := cmd.Flags().Changed
	if set("style") {
		defaults.Style = flags.style
	}
	if set("seed") {
		defaults.Seed = flags.seed
	}
	if set("steps") {
		defaults.InferenceSteps = flags.steps
	}
	if set("top-k") {
		defaults.TopK = flags.topK
	}
	if set("recursive") {
		defaults.Recursive = flags.recursive
	}
	if set("overwrite") {
		defaults.Overwrite = flags.overwrite
	}
	if set("preview") {
		defaults.PreviewMode = flags.preview
	}
	if len(flags.references) > 0 {
		defaults.ReferenceImages = flags.references
	}
}

func collectInputs(args []string, inputDir string, recursive bool) ([]string, error) {
	inputs := append([]string(nil), args...)
	if strings.TrimSpace(inputDir) != "" {
		scanned, err := files.ScanDirectory(inputDir, recursive)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, scanned...)
	}
	return inputs, nil
}

// watchInterrupts cancels the batch on the first SIGINT/SIGTERM and
// exits hard on the second. It returns a flag set once a signal landed.
func watchInterrupts(controller *batch.Controller, logger *slog.Logger) *atomic.Bool {
	interrupted := new(atomic.Bool)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		interrupted.Store(true)
		logger.Warn("interrupt received, cancelling after the current image")
		if err := controller.Cancel(); err != nil {
			logger.Warn("cancel failed", logging.Error(err))
		}
		<-sigCh
		os.Exit(exitInterrupted)
	}()
	return interrupted
}

// startProgress renders a terminal progress bar tracking terminal
// states. The returned function stops it.
func startProgress(controller *batch.Controller, total int, disabled bool) func() {
	if disabled || !isatty.IsTerminal(os.Stderr.Fd()) {
		return func() {}
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("colorizing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				summary := controller.Summary()
				_ = bar.Set(summary.Completed + summary.Failed + summary.Cancelled)
				_ = bar.Finish()
				return
			case <-ticker.C:
				summary := controller.Summary()
				_ = bar.Set(summary.Completed + summary.Failed + summary.Cancelled)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// handlePreview shows the preview outcome and reads the operator's
// decision. It reports done=true when no further Run is needed.
func handlePreview(cmd *cobra.Command, controller *batch.Controller, resolver *settings.Resolver) (bool, error) {
	record, ok := controller.PreviewResult()
	if !ok {
		return true, nil
	}

	out := cmd.OutOrStdout()
	if record.State == tracker.StateCompleted {
		fmt.Fprintf(out, "\nPreview ready: %s\n", record.OutputPath)
	} else {
		fmt.Fprintf(out, "\nPreview failed: %s\n", record.ErrorMessage)
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprintln(out, "stdin is not a terminal; approving preview")
		return true, approve(cmd, controller)
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "[a]pprove and continue, [r]eject and adjust, [q]uit: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return true, approve(cmd, controller)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "approve":
			return true, approve(cmd, controller)
		case "r", "reject":
			if err := controller.RejectPreview(); err != nil {
				return false, newExitError(exitFailure, err.Error())
			}
			adjustSettings(out, reader, resolver)
			return false, nil
		case "q", "quit":
			return true, newExitError(exitInterrupted, "preview abandoned")
		}
	}
}

// approve accepts the preview; ApprovePreview processes the rest of
// the queue before returning, so no follow-up Run is needed.
func approve(cmd *cobra.Command, controller *batch.Controller) error {
	if err := controller.ApprovePreview(cmd.Context()); err != nil {
		return newExitError(exitFailure, err.Error())
	}
	return nil
}

// adjustSettings lets the operator tweak the defaults before the next
// preview. Blank answers keep the current value.
func adjustSettings(out io.Writer, reader *bufio.Reader, resolver *settings.Resolver) {
	current := resolver.Defaults()

	prompt := func(label, currentValue string) string {
		fmt.Fprintf(out, "%s [%s]: ", label, currentValue)
		line, err := reader.ReadString('\n')
		if err != nil {
			return ""
		}
		return strings.TrimSpace(line)
	}

	if answer := prompt("Style", current.Style); answer != "" {
		current.Style = answer
	}
	if answer := prompt("Seed", strconv.Itoa(current.Seed)); answer != "" {
		if n, err := strconv.Atoi(answer); err == nil {
			current.Seed = n
		}
	}
	if answer := prompt("Inference steps", strconv.Itoa(current.InferenceSteps)); answer != "" {
		if n, err := strconv.Atoi(answer); err == nil {
			current.InferenceSteps = n
		}
	}

	if err := settings.ValidateStrict(settings.StrictMap(current)); err != nil {
		fmt.Fprintf(out, "keeping previous settings: %v\n", err)
		return
	}
	resolver.SetDefaults(current)
}

func printSummary(cmd *cobra.Command, summary tracker.Summary, records []tracker.Record) {
	out := cmd.OutOrStdout()

	rep := newReport("Input", "State", "Duration", "Result")
	for _, record := range records {
		rep.addRow(
			filepath.Base(record.InputPath),
			string(record.State),
			formatItemDuration(record.Duration()),
			outcomeDetail(record.OutputPath, record.ErrorMessage),
		)
	}
	fmt.Fprintln(out, rep.render())

	fmt.Fprintf(out, "Completed %d, failed %d, cancelled %d of %d (%s success) in %s\n",
		summary.Completed, summary.Failed, summary.Cancelled, summary.Total,
		formatPercent(summary.SuccessRate()), summary.Elapsed().Round(time.Millisecond))
}

func archiveRun(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, summary tracker.Summary, records []tracker.Record) {
	if !cfg.History.Enabled {
		return
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logger.Warn("history unavailable", logging.Error(err))
		return
	}
	defer store.Close()
	if _, err := store.RecordRun(cmd.Context(), summary, records); err != nil {
		logger.Warn("history write failed", logging.Error(err))
	}
}
