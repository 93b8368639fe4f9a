package tracker_test

import (
	"fmt"
	"testing"

	"tinct/internal/tracker"
)

func TestAddRejectsDuplicateIDs(t *testing.T) {
	tr := tracker.New()
	if err := tr.Add("item-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := tr.Add("item-1"); err == nil {
		t.Fatal("expected error when adding an id twice")
	}
}

func TestUpdateRejectsUnknownIDAndState(t *testing.T) {
	tr := tracker.New()
	if err := tr.Update("missing", tracker.StateProcessing); err == nil {
		t.Fatal("expected error for unknown id")
	}
	if err := tr.Add("item-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := tr.Update("item-1", tracker.State("exploded")); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestTransitionsStampTimes(t *testing.T) {
	tr := tracker.New()
	if err := tr.Add("item-1"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	record, err := tr.Record("item-1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if record.State != tracker.StatePending {
		t.Fatalf("initial state = %s, want pending", record.State)
	}
	if !record.StartedAt.IsZero() || !record.FinishedAt.IsZero() {
		t.Fatal("timestamps must be unset before processing")
	}

	if err := tr.Update("item-1", tracker.StateProcessing); err != nil {
		t.Fatalf("Update processing: %v", err)
	}
	record, _ = tr.Record("item-1")
	if record.StartedAt.IsZero() {
		t.Fatal("StartedAt not stamped on processing transition")
	}

	if err := tr.Update("item-1", tracker.StateCompleted, tracker.WithOutputPath("/out/a.png")); err != nil {
		t.Fatalf("Update completed: %v", err)
	}
	record, _ = tr.Record("item-1")
	if record.FinishedAt.IsZero() {
		t.Fatal("FinishedAt not stamped on terminal transition")
	}
	if record.OutputPath != "/out/a.png" {
		t.Fatalf("OutputPath = %q", record.OutputPath)
	}
	if record.Duration() < 0 {
		t.Fatalf("Duration = %v", record.Duration())
	}
}

func TestFailureStoresErrorMessage(t *testing.T) {
	tr := tracker.New()
	_ = tr.Add("item-1")
	_ = tr.Update("item-1", tracker.StateProcessing)
	if err := tr.Update("item-1", tracker.StateFailed, tracker.WithError("colorize: transform timed out")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	record, _ := tr.Record("item-1")
	if record.ErrorMessage != "colorize: transform timed out" {
		t.Fatalf("ErrorMessage = %q", record.ErrorMessage)
	}
}

func TestBulkCancelSkipsProcessing(t *testing.T) {
	tr := tracker.New()
	for i := 0; i < 3; i++ {
		_ = tr.Add(fmt.Sprintf("item-%d", i))
	}
	for _, id := range tr.InState(tracker.StatePending) {
		if err := tr.Update(id, tracker.StateCancelled); err != nil {
			t.Fatalf("cancel %s: %v", id, err)
		}
	}
	for _, record := range tr.All() {
		if record.State != tracker.StateCancelled {
			t.Fatalf("record %s state = %s", record.ID, record.State)
		}
		if !record.StartedAt.IsZero() {
			t.Fatalf("cancelled-from-pending item %s must not have a start time", record.ID)
		}
		if record.FinishedAt.IsZero() {
			t.Fatalf("cancelled item %s missing finish time", record.ID)
		}
	}
}

func TestSummaryCountsAndCompletion(t *testing.T) {
	tr := tracker.New()
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		_ = tr.Add(id)
	}

	summary := tr.Summary()
	if summary.Total != 4 || summary.Pending != 4 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.IsComplete() {
		t.Fatal("batch with pending items must not be complete")
	}
	if summary.StartedAt.IsZero() {
		t.Fatal("batch start must be stamped on first Add")
	}

	_ = tr.Update("a", tracker.StateProcessing)
	_ = tr.Update("a", tracker.StateCompleted)
	_ = tr.Update("b", tracker.StateProcessing)
	_ = tr.Update("b", tracker.StateFailed, tracker.WithError("boom"))
	_ = tr.Update("c", tracker.StateCancelled)

	summary = tr.Summary()
	if summary.Completed != 1 || summary.Failed != 1 || summary.Cancelled != 1 || summary.Pending != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.IsComplete() {
		t.Fatal("one item is still pending")
	}
	if !summary.FinishedAt.IsZero() {
		t.Fatal("finish time must stay unset until every record is terminal")
	}

	_ = tr.Update("d", tracker.StateProcessing)
	_ = tr.Update("d", tracker.StateCompleted)

	summary = tr.Summary()
	if !summary.IsComplete() {
		t.Fatalf("summary = %+v, want complete", summary)
	}
	if summary.FinishedAt.IsZero() {
		t.Fatal("finish time must be set once all records are terminal")
	}
	if got := summary.SuccessRate(); got < 0.66 || got > 0.67 {
		t.Fatalf("success rate = %v, want 2/3", got)
	}
}

func TestSuccessRateZeroWhenNoOutcomes(t *testing.T) {
	tr := tracker.New()
	_ = tr.Add("a")
	_ = tr.Update("a", tracker.StateCancelled)
	if rate := tr.Summary().SuccessRate(); rate != 0 {
		t.Fatalf("success rate = %v, want 0", rate)
	}
}

func TestParseState(t *testing.T) {
	cases := []struct {
		in   string
		want tracker.State
		ok   bool
	}{
		{"pending", tracker.StatePending, true},
		{" Completed ", tracker.StateCompleted, true},
		{"CANCELLED", tracker.StateCancelled, true},
		{"", "", false},
		{"done", "", false},
	}
	for _, tc := range cases {
		got, ok := tracker.ParseState(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseState(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
