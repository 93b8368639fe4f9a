package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"tinct/internal/classify"
	"tinct/internal/files"
	"tinct/internal/logging"
	"tinct/internal/memory"
	"tinct/internal/queue"
	"tinct/internal/services"
	"tinct/internal/settings"
	"tinct/internal/tracker"
)

// Processor colorizes one image. The batch controller never looks
// inside a processing failure beyond its marker; it records the
// message and moves on.
type Processor interface {
	Process(ctx context.Context, inputPath, outputPath string, cfg settings.Settings) error
}

// Labeler optionally classifies inputs at intake so operators can spot
// images unlikely to colorize well. Classification never blocks intake.
type Labeler interface {
	Classify(path string) (classify.Result, error)
}

// Options configure a Controller.
type Options struct {
	// OutputDir receives colorized results.
	OutputDir string
	// MemoryThreshold is the usage fraction above which the controller
	// reclaims memory before starting an item.
	MemoryThreshold float64
}

// Status is a point-in-time snapshot of a controller.
type Status struct {
	Summary    tracker.Summary
	QueueSize  int
	Processing bool
	Paused     bool
	Cancelled  bool

	PreviewMode     bool
	AwaitingPreview bool
	PreviewApproved bool
}

// Controller runs batches sequentially. All mutating entry points are
// safe for concurrent use; processing itself is strictly one item at a
// time.
type Controller struct {
	queue     *queue.Queue
	tracker   *tracker.Tracker
	resolver  *settings.Resolver
	gate      *memory.Gate
	processor Processor
	labeler   Labeler
	opts      Options
	logger    *slog.Logger

	mu               sync.Mutex
	processing       bool
	paused           bool
	cancelled        bool
	previewProcessed bool
	previewApproved  bool
	previewResult    *tracker.Record
}

// NewController wires a controller. labeler may be nil to skip intake
// classification.
func NewController(processor Processor, resolver *settings.Resolver, gate *memory.Gate, labeler Labeler, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		queue:     queue.New(),
		tracker:   tracker.New(),
		resolver:  resolver,
		gate:      gate,
		processor: processor,
		labeler:   labeler,
		opts:      opts,
		logger:    logger,
	}
}

// AddImages validates, classifies, and enqueues the given inputs at
// the given priority. Invalid paths are skipped with a warning; an
// intake where nothing valid remains is a validation error. It returns
// the number of items enqueued.
func (c *Controller) AddImages(paths []string, priority int) (int, error) {
	defaults := c.resolver.Defaults()
	added := 0
	for _, path := range paths {
		if err := files.ValidateImageFile(path); err != nil {
			c.logger.Warn("skipping invalid input", logging.String("path", path), logging.Error(err))
			continue
		}

		outputPath := files.CreateOutputPath(path, c.opts.OutputDir)
		outputPath, err := files.ResolveCollision(outputPath, defaults.Overwrite)
		if err != nil {
			c.logger.Warn("skipping input without available output name",
				logging.String("path", path), logging.Error(err))
			continue
		}

		item := &queue.Item{
			ID:         uuid.NewString(),
			InputPath:  path,
			OutputPath: outputPath,
			Priority:   priority,
		}
		if c.labeler != nil {
			if result, err := c.labeler.Classify(path); err == nil {
				item.Classification = &queue.Classification{
					Label:      result.Label,
					Confidence: result.Confidence,
				}
				if result.Label == classify.LabelColored {
					c.logger.Warn("input looks already colored",
						logging.String("path", path),
						logging.Float64("confidence", result.Confidence))
				}
			} else {
				c.logger.Warn("classification failed", logging.String("path", path), logging.Error(err))
			}
		}

		if err := c.tracker.Add(item.ID, tracker.WithInputPath(path)); err != nil {
			return added, fmt.Errorf("registering %s: %w", path, err)
		}
		c.queue.Enqueue(item)
		added++
	}

	if added == 0 {
		return 0, services.Wrap(services.ErrValidation, "batch", "add images", "no valid images to process", nil)
	}
	c.logger.Info("enqueued images", logging.Int("count", added), logging.Int("priority", priority))
	return added, nil
}

// Run processes the queue until it drains, the batch is paused or
// cancelled, or the context ends. With preview mode enabled and no
// approval yet, Run processes a single item and stops so the caller
// can inspect it.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return services.Wrap(services.ErrValidation, "batch", "run", "batch is already processing", nil)
	}
	if c.previewProcessed && !c.previewApproved {
		c.mu.Unlock()
		c.logger.Info("preview awaiting approval; run is a no-op")
		return nil
	}
	if c.queue.IsEmpty() {
		c.mu.Unlock()
		return services.Wrap(services.ErrValidation, "batch", "run", "queue is empty", nil)
	}
	c.processing = true
	c.paused = false
	c.cancelled = false
	c.mu.Unlock()

	return c.run(ctx)
}

// run drives the loop. The processing flag is already set.
func (c *Controller) run(ctx context.Context) error {
	c.mu.Lock()
	previewPending := c.resolver.Defaults().PreviewMode && !c.previewApproved && !c.previewProcessed
	c.mu.Unlock()

	if previewPending {
		return c.runPreview(ctx)
	}

	for {
		c.mu.Lock()
		if c.paused {
			c.mu.Unlock()
			c.logger.Info("batch paused")
			return nil
		}
		stop := c.cancelled || ctx.Err() != nil
		c.mu.Unlock()

		if stop {
			c.cancelRemaining()
			c.finish()
			return nil
		}

		item := c.queue.Dequeue()
		if item == nil {
			break
		}
		if err := c.processOne(ctx, item); err != nil {
			c.finish()
			return err
		}
	}

	c.finish()
	summary := c.tracker.Summary()
	c.logger.Info("batch finished",
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("cancelled", summary.Cancelled),
		logging.Float64("success_rate", summary.SuccessRate()))
	return nil
}

// runPreview processes exactly one item and parks the batch until the
// caller approves or rejects the result.
func (c *Controller) runPreview(ctx context.Context) error {
	item := c.queue.Dequeue()
	if item == nil {
		c.finish()
		return nil
	}
	if err := c.processOne(ctx, item); err != nil {
		c.finish()
		return err
	}

	record, err := c.tracker.Record(item.ID)
	if err != nil {
		c.finish()
		return err
	}

	c.mu.Lock()
	c.previewProcessed = true
	c.previewResult = &record
	c.processing = false
	c.mu.Unlock()

	c.logger.Info("preview ready, awaiting approval",
		logging.String("id", record.ID),
		logging.String("state", string(record.State)),
		logging.String("output", record.OutputPath))
	return nil
}

// processOne runs a single item through the processor. Processing
// failures are recorded against the item and never abort the batch;
// only tracker bookkeeping failures propagate.
func (c *Controller) processOne(ctx context.Context, item *queue.Item) error {
	if err := c.tracker.Update(item.ID, tracker.StateProcessing); err != nil {
		return err
	}

	if c.gate != nil && c.opts.MemoryThreshold > 0 {
		c.gate.ReclaimIfNeeded(c.opts.MemoryThreshold)
	}

	cfg := c.resolver.Resolve(item.InputPath)
	if len(item.Overrides) > 0 {
		cfg = settings.Apply(cfg, item.Overrides)
	}

	procErr := c.processor.Process(ctx, item.InputPath, item.OutputPath, cfg)
	if procErr != nil {
		c.logger.Error("item failed",
			logging.String("id", item.ID),
			logging.String("input", item.InputPath),
			logging.Error(procErr))
		if err := c.tracker.Update(item.ID, tracker.StateFailed, tracker.WithError(procErr.Error())); err != nil {
			return err
		}
		if services.IsResource(procErr) && c.gate != nil {
			c.gate.Reclaim()
		}
	} else {
		if err := c.tracker.Update(item.ID, tracker.StateCompleted, tracker.WithOutputPath(item.OutputPath)); err != nil {
			return err
		}
	}

	// Backend caches are dropped after every item regardless of outcome.
	if c.gate != nil {
		c.gate.ClearCache()
	}
	return nil
}

// cancelRemaining sweeps every still-pending item into cancelled and
// drains the queue.
func (c *Controller) cancelRemaining() {
	for _, id := range c.tracker.InState(tracker.StatePending) {
		if err := c.tracker.Update(id, tracker.StateCancelled); err != nil {
			c.logger.Warn("cancel bookkeeping failed", logging.String("id", id), logging.Error(err))
		}
	}
	c.queue.Clear()
	c.logger.Info("cancelled remaining items")
}

func (c *Controller) finish() {
	c.mu.Lock()
	c.processing = false
	c.paused = false
	c.mu.Unlock()
}

// Pause stops the loop before the next item. The in-flight item, if
// any, finishes first.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.processing {
		return services.Wrap(services.ErrValidation, "batch", "pause", "batch is not processing", nil)
	}
	if c.paused {
		return services.Wrap(services.ErrValidation, "batch", "pause", "batch is already paused", nil)
	}
	c.paused = true
	return nil
}

// Resume continues a paused batch.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return services.Wrap(services.ErrValidation, "batch", "resume", "batch is not paused", nil)
	}
	c.paused = false
	c.mu.Unlock()
	c.logger.Info("batch resumed")
	return c.run(ctx)
}

// Cancel aborts the batch. While the loop is live the request takes
// effect before the next item; on a paused batch the pending sweep
// happens immediately.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if !c.processing {
		c.mu.Unlock()
		return services.Wrap(services.ErrValidation, "batch", "cancel", "batch is not processing", nil)
	}
	c.cancelled = true
	wasPaused := c.paused
	c.mu.Unlock()

	if wasPaused {
		c.cancelRemaining()
		c.finish()
	}
	return nil
}

// ApprovePreview accepts the preview result and processes the rest of
// the queue with the current settings. Approving twice is harmless.
func (c *Controller) ApprovePreview(ctx context.Context) error {
	c.mu.Lock()
	if !c.previewProcessed {
		c.mu.Unlock()
		return services.Wrap(services.ErrValidation, "batch", "approve preview", "no preview awaiting approval", nil)
	}
	if c.previewApproved {
		c.mu.Unlock()
		c.logger.Info("preview already approved")
		return nil
	}
	c.previewApproved = true
	c.mu.Unlock()

	// The previewed item may have been the whole batch.
	if c.queue.IsEmpty() {
		return nil
	}
	return c.Run(ctx)
}

// RejectPreview discards the preview decision so the caller can adjust
// settings and run a fresh preview. It fails only when no preview has
// been produced. Queued items are untouched; the previewed item keeps
// its terminal state.
func (c *Controller) RejectPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.previewProcessed {
		return services.Wrap(services.ErrValidation, "batch", "reject preview", "no preview exists", nil)
	}
	c.previewProcessed = false
	c.previewApproved = false
	c.previewResult = nil
	c.logger.Info("preview rejected")
	return nil
}

// IsWaitingForPreviewApproval reports whether a preview result is
// parked awaiting a decision.
func (c *Controller) IsWaitingForPreviewApproval() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previewProcessed && !c.previewApproved
}

// PreviewResult returns the record of the previewed item, if one exists.
func (c *Controller) PreviewResult() (tracker.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previewResult == nil {
		return tracker.Record{}, false
	}
	return *c.previewResult, true
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Summary:         c.tracker.Summary(),
		QueueSize:       c.queue.Size(),
		Processing:      c.processing,
		Paused:          c.paused,
		Cancelled:       c.cancelled,
		PreviewMode:     c.resolver.Defaults().PreviewMode,
		AwaitingPreview: c.previewProcessed && !c.previewApproved,
		PreviewApproved: c.previewApproved,
	}
}

// Records returns every tracked record in intake order.
func (c *Controller) Records() []tracker.Record {
	return c.tracker.All()
}

// Summary returns the aggregate tracker view.
func (c *Controller) Summary() tracker.Summary {
	return c.tracker.Summary()
}

// QueueSize reports the number of items still waiting.
func (c *Controller) QueueSize() int {
	return c.queue.Size()
}
