package batch_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tinct/internal/batch"
	"tinct/internal/memory"
	"tinct/internal/services"
	"tinct/internal/settings"
	"tinct/internal/tracker"
)

// funcProcessor adapts a function to the Processor interface and
// records the order inputs were processed in.
type funcProcessor struct {
	mu    sync.Mutex
	order []string
	fn    func(inputPath string, cfg settings.Settings) error
}

func (p *funcProcessor) Process(_ context.Context, inputPath, _ string, cfg settings.Settings) error {
	p.mu.Lock()
	p.order = append(p.order, inputPath)
	p.mu.Unlock()
	if p.fn == nil {
		return nil
	}
	return p.fn(inputPath, cfg)
}

func (p *funcProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

type countingClearer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingClearer) ClearCache() error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil
}

func (c *countingClearer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func writeInputs(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("image bytes"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		paths = append(paths, path)
	}
	return paths
}

func newController(t *testing.T, processor batch.Processor, defaults settings.Settings) (*batch.Controller, *countingClearer, string) {
	t.Helper()
	outputDir := t.TempDir()
	clearer := &countingClearer{}
	gate := memory.NewGate(clearer, nil)
	resolver := settings.NewResolver(defaults, nil)
	controller := batch.NewController(processor, resolver, gate, nil, batch.Options{OutputDir: outputDir}, nil)
	return controller, clearer, outputDir
}

func TestRunMixedOutcomes(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, "a.png", "b.png", "c.png")

	processor := &funcProcessor{fn: func(inputPath string, _ settings.Settings) error {
		if filepath.Base(inputPath) == "b.png" {
			return errors.New("model crashed")
		}
		return nil
	}}
	controller, clearer, _ := newController(t, processor, settings.Defaults())

	added, err := controller.AddImages(inputs, 0)
	if err != nil || added != 3 {
		t.Fatalf("AddImages = %d, %v", added, err)
	}
	if err := controller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	summary := controller.Summary()
	if summary.Completed != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 2 completed 1 failed", summary)
	}
	if !summary.IsComplete() {
		t.Fatalf("batch should be complete: %+v", summary)
	}
	if rate := summary.SuccessRate(); math.Abs(rate-2.0/3) > 1e-9 {
		t.Fatalf("success rate = %f, want 2/3", rate)
	}

	// One cache clear per item, regardless of outcome.
	if clearer.count() != 3 {
		t.Fatalf("cache cleared %d times, want 3", clearer.count())
	}

	var failed tracker.Record
	for _, record := range controller.Records() {
		if record.State == tracker.StateFailed {
			failed = record
		}
	}
	if failed.ErrorMessage == "" {
		t.Fatal("failed record should carry the error message")
	}
}

func TestRunRequiresItems(t *testing.T) {
	controller, _, _ := newController(t, &funcProcessor{}, settings.Defaults())
	err := controller.Run(context.Background())
	if err == nil || !services.IsValidation(err) {
		t.Fatalf("expected validation error for empty queue, got %v", err)
	}
}

func TestAddImagesRejectsAllInvalid(t *testing.T) {
	controller, _, _ := newController(t, &funcProcessor{}, settings.Defaults())
	_, err := controller.AddImages([]string{"/no/such/file.png"}, 0)
	if err == nil || !services.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = controller.AddImages(nil, 0)
	if err == nil {
		t.Fatal("expected error for empty intake")
	}
}

func TestAddImagesSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, "good.png")
	inputs = append(inputs, filepath.Join(dir, "missing.png"))

	controller, _, _ := newController(t, &funcProcessor{}, settings.Defaults())
	added, err := controller.AddImages(inputs, 0)
	if err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
}

func TestPriorityOrdering(t *testing.T) {
	dir := t.TempDir()
	low := writeInputs(t, dir, "low1.png", "low2.png")
	high := writeInputs(t, dir, "high.png")

	processor := &funcProcessor{}
	controller, _, _ := newController(t, processor, settings.Defaults())

	if _, err := controller.AddImages(low, 0); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if _, err := controller.AddImages(high, 5); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := controller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	order := processor.processed()
	if len(order) != 3 || filepath.Base(order[0]) != "high.png" {
		t.Fatalf("high-priority item should run first, got %v", order)
	}
	if filepath.Base(order[1]) != "low1.png" || filepath.Base(order[2]) != "low2.png" {
		t.Fatalf("equal priorities should keep intake order, got %v", order)
	}
}

func TestResourceFailureTriggersReclaim(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, "heavy.png")

	processor := &funcProcessor{fn: func(string, settings.Settings) error {
		return services.Wrap(services.ErrResource, "colorizer", "request", "backend returned 507", nil)
	}}
	controller, clearer, _ := newController(t, processor, settings.Defaults())

	if _, err := controller.AddImages(inputs, 0); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := controller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// One clear from the reclaim plus the unconditional per-item clear.
	if clearer.count() != 2 {
		t.Fatalf("cache cleared %d times, want 2", clearer.count())
	}
	if summary := controller.Summary(); summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", summary)
	}
}

func TestPreviewLifecycle(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, "a.png", "b.png", "c.png", "d.png", "e.png")

	defaults := settings.Defaults()
	defaults.PreviewMode = true
	processor := &funcProcessor{}
	controller, _, _ := newController(t, processor, defaults)

	if _, err := controller.AddImages(inputs, 0); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := controller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !controller.IsWaitingForPreviewApproval() {
		t.Fatal("controller should be waiting for preview approval")
	}
	record, ok := controller.PreviewResult()
	if !ok || record.State != tracker.StateCompleted {
		t.Fatalf("preview result = %+v, %v", record, ok)
	}
	summary := controller.Summary()
	if summary.Completed != 1 || summary.Pending != 4 {
		t.Fatalf("summary after preview = %+v, want 1 completed 4 pending", summary)
	}
	if controller.QueueSize() != 4 {
		t.Fatalf("queue size = %d, want 4", controller.QueueSize())
	}

	// Run without a decision is a no-op; nothing processes unapproved.
	if err := controller.Run(context.Background()); err != nil {
		t.Fatalf("Run while awaiting approval: %v", err)
	}
	if got := controller.Summary(); got.Completed != 1 || got.Pending != 4 {
		t.Fatalf("undecided run must not process items: %+v", got)
	}

	// Reject: the decision resets, the queue is untouched.
	if err := controller.RejectPreview(); err != nil {
		t.Fatalf("RejectPreview: %v", err)
	}
	if controller.IsWaitingForPreviewApproval() {
		t.Fatal("rejection should clear the waiting state")
	}
	if controller.QueueSize() != 4 {
		t.Fatalf("queue size after reject = %d, want 4", controller.QueueSize())
	}

	// A fresh run previews the next item.
	if err := controller.Run(context.Background()); err != nil {
		t.Fatalf("Run after reject: %v", err)
	}
	if !controller.IsWaitingForPreviewApproval() {
		t.Fatal("second run should produce a new preview")
	}
	if got := controller.Summary(); got.Completed != 2 || got.Pending != 3 {
		t.Fatalf("summary after second preview = %+v", got)
	}

	// Approve: the remainder processes with the current settings.
	if err := controller.ApprovePreview(context.Background()); err != nil {
		t.Fatalf("ApprovePreview: %v", err)
	}
	final := controller.Summary()
	if final.Completed != 5 || !final.IsComplete() {
		t.Fatalf("final summary = %+v, want 5 completed", final)
	}

	// Double approval is harmless.
	if err := controller.ApprovePreview(context.Background()); err != nil {
		t.Fatalf("second ApprovePreview: %v", err)
	}

	// Rejection stays available once a preview exists, even after an
	// approval: it clears the whole decision for the next batch.
	if err := controller.RejectPreview(); err != nil {
		t.Fatalf("RejectPreview after approval: %v", err)
	}
	if _, ok := controller.PreviewResult(); ok {
		t.Fatal("rejection should discard the preview result")
	}
	if controller.IsWaitingForPreviewApproval() {
		t.Fatal("rejection should clear the waiting state")
	}
}

func TestRejectWithoutPreviewFails(t *testing.T) {
	controller, _, _ := newController(t, &funcProcessor{}, settings.Defaults())
	if err := controller.RejectPreview(); err == nil {
		t.Fatal("expected error rejecting without a preview")
	}
	if err := controller.ApprovePreview(context.Background()); err == nil {
		t.Fatal("expected error approving without a preview")
	}
}

func TestPauseAndResume(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, "a.png", "b.png", "c.png")

	started := make(chan string, 3)
	release := make(chan struct{})
	processor := &funcProcessor{fn: func(inputPath string, _ settings.Settings) error {
		started <- filepath.Base(inputPath)
		<-release
		return nil
	}}
	controller, _, _ := newController(t, processor, settings.Defaults())

	if _, err := controller.AddImages(inputs, 0); err != nil {
		t.Fatalf("AddImages: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- controller.Run(context.Background()) }()

	waitFor(t, started)
	if err := controller.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	release <- struct{}{}

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	summary := controller.Summary()
	if summary.Completed != 1 || summary.Pending != 2 {
		t.Fatalf("summary after pause = %+v, want 1 completed 2 pending", summary)
	}
	status := controller.Status()
	if !status.Paused {
		t.Fatalf("status = %+v, want paused", status)
	}

	// Resume finishes the rest.
	go func() { done <- controller.Resume(context.Background()) }()
	waitFor(t, started)
	release <- struct{}{}
	waitFor(t, started)
	release <- struct{}{}

	if err := <-done; err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got := controller.Summary(); got.Completed != 3 {
		t.Fatalf("final summary = %+v, want 3 completed", got)
	}
}

func TestResumeWithoutPauseFails(t *testing.T) {
	controller, _, _ := newController(t, &funcProcessor{}, settings.Defaults())
	if err := controller.Resume(context.Background()); err == nil {
		t.Fatal("expected error resuming an unpaused batch")
	}
	if err := controller.Pause(); err == nil {
		t.Fatal("expected error pausing an idle batch")
	}
	if err := controller.Cancel(); err == nil {
		t.Fatal("expected error cancelling an idle batch")
	}
}

func TestCancelSweepsPending(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, "a.png", "b.png", "c.png", "d.png")

	started := make(chan string, 4)
	release := make(chan struct{})
	processor := &funcProcessor{fn: func(inputPath string, _ settings.Settings) error {
		started <- filepath.Base(inputPath)
		<-release
		return nil
	}}
	controller, _, _ := newController(t, processor, settings.Defaults())

	if _, err := controller.AddImages(inputs, 0); err != nil {
		t.Fatalf("AddImages: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- controller.Run(context.Background()) }()

	waitFor(t, started)
	if err := controller.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	release <- struct{}{}

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	summary := controller.Summary()
	if summary.Completed != 1 || summary.Cancelled != 3 {
		t.Fatalf("summary = %+v, want 1 completed 3 cancelled", summary)
	}
	if !summary.IsComplete() {
		t.Fatalf("cancelled batch should be complete: %+v", summary)
	}
	if controller.QueueSize() != 0 {
		t.Fatalf("queue should be drained, size %d", controller.QueueSize())
	}

	// Cancelled items never started.
	for _, record := range controller.Records() {
		if record.State == tracker.StateCancelled && !record.StartedAt.IsZero() {
			t.Fatalf("cancelled record has a start time: %+v", record)
		}
	}
}

func TestContextCancellationSweeps(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, "a.png", "b.png", "c.png")

	ctx, cancel := context.WithCancel(context.Background())
	processor := &funcProcessor{fn: func(inputPath string, _ settings.Settings) error {
		if filepath.Base(inputPath) == "a.png" {
			cancel()
		}
		return nil
	}}
	controller, _, _ := newController(t, processor, settings.Defaults())

	if _, err := controller.AddImages(inputs, 0); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := controller.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	summary := controller.Summary()
	if summary.Completed != 1 || summary.Cancelled != 2 {
		t.Fatalf("summary = %+v, want 1 completed 2 cancelled", summary)
	}
}

func TestRunWhileRunningFails(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, "a.png")

	started := make(chan string, 1)
	release := make(chan struct{})
	processor := &funcProcessor{fn: func(inputPath string, _ settings.Settings) error {
		started <- filepath.Base(inputPath)
		<-release
		return nil
	}}
	controller, _, _ := newController(t, processor, settings.Defaults())

	if _, err := controller.AddImages(inputs, 0); err != nil {
		t.Fatalf("AddImages: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- controller.Run(context.Background()) }()
	waitFor(t, started)

	if err := controller.Run(context.Background()); err == nil || !services.IsValidation(err) {
		t.Fatalf("expected validation error for concurrent run, got %v", err)
	}

	release <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPerItemOverridesApply(t *testing.T) {
	dir := t.TempDir()
	inputs := writeInputs(t, dir, "styled.png")

	var seen settings.Settings
	processor := &funcProcessor{fn: func(_ string, cfg settings.Settings) error {
		seen = cfg
		return nil
	}}

	defaults := settings.Defaults()
	resolver := settings.NewResolver(defaults, nil)
	if err := resolver.Load(map[string]any{
		"images": map[string]any{
			"styled.png": map[string]any{"seed": 99, "style": settings.StyleLine},
		},
	}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	controller := batch.NewController(processor, resolver, memory.NewGate(nil, nil), nil,
		batch.Options{OutputDir: t.TempDir()}, nil)
	if _, err := controller.AddImages(inputs, 0); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := controller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if seen.Seed != 99 || seen.Style != settings.StyleLine {
		t.Fatalf("override not applied, got %+v", seen)
	}
	if seen.InferenceSteps != defaults.InferenceSteps {
		t.Fatalf("unrelated field changed: %+v", seen)
	}
}

func waitFor(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for processor")
		return ""
	}
}
