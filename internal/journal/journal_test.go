package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ssandoval/treasury-cli/internal/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "journal.db"), filepath.Join(dir, "journal.lock"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult(planID string, success bool, completedAt time.Time) model.ExecutionResult {
	return model.ExecutionResult{
		PlanID:  planID,
		Success: success,
		Steps: []model.Step{
			{ID: "step_1", Kind: model.StepKindTransfer, Status: model.StepStatusSuccess, Asset: "USDC", AmountBaseUnits: "50000000"},
		},
		CompletedAt: completedAt.UTC().Format(time.RFC3339),
	}
}

func TestRecordAndListRoundTrip(t *testing.T) {
	store := openStore(t)

	want := sampleResult("plan_1", true, time.Now())
	if err := store.Record(want); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].PlanID != "plan_1" || !got[0].Success {
		t.Fatalf("unexpected record: %+v", got[0])
	}
	if len(got[0].Steps) != 1 || got[0].Steps[0].Asset != "USDC" {
		t.Fatalf("step payload not preserved: %+v", got[0].Steps)
	}
}

func TestRecordUpsertsByPlanID(t *testing.T) {
	store := openStore(t)

	if err := store.Record(sampleResult("plan_1", false, time.Now())); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record(sampleResult("plan_1", true, time.Now())); err != nil {
		t.Fatalf("second Record failed: %v", err)
	}

	got, err := store.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("upsert should keep a single row, got %d", len(got))
	}
	if !got[0].Success {
		t.Fatal("latest record should win")
	}
}

func TestListOrdersNewestFirstAndLimits(t *testing.T) {
	store := openStore(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"plan_old", "plan_mid", "plan_new"} {
		if err := store.Record(sampleResult(id, true, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := store.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].PlanID != "plan_new" || got[1].PlanID != "plan_mid" {
		t.Fatalf("unexpected order: %s, %s", got[0].PlanID, got[1].PlanID)
	}
}

func TestRecordRequiresPlanID(t *testing.T) {
	store := openStore(t)
	if err := store.Record(model.ExecutionResult{}); err == nil {
		t.Fatal("expected error for missing plan id")
	}
}
