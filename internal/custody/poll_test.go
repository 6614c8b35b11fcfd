package custody

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollWaitsForConfirmation(t *testing.T) {
	var calls int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transactions/txreq_123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			_ = json.NewEncoder(w).Encode(map[string]string{"state": "pending"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"state":   "confirmed",
			"tx_hash": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		})
	})

	result, err := c.Poll(context.Background(), "txreq_123", 10*time.Millisecond, 2*time.Second)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if result.State != StateConfirmed {
		t.Fatalf("expected confirmed, got %s", result.State)
	}
	if result.TxHash == "" {
		t.Fatal("expected resolved tx hash")
	}
}

func TestPollReportsOnChainFailure(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"state":        "failed",
			"error_reason": "execution reverted",
		})
	})
	result, err := c.Poll(context.Background(), "txreq_1", 10*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if result.State != StateFailed || result.ErrorReason != "execution reverted" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPollTimesOutAsOutcome(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"state": "pending"})
	})
	start := time.Now()
	result, err := c.Poll(context.Background(), "txreq_1", 10*time.Millisecond, 60*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if result.State != StateTimeout {
		t.Fatalf("expected timeout outcome, got %s", result.State)
	}
	if time.Since(start) > time.Second {
		t.Fatal("poll did not respect its deadline")
	}
}

func TestPollDistinguishesCancellationFromTimeout(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"state": "pending"})
	})
	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(30*time.Millisecond, cancel)
	defer timer.Stop()

	result, err := c.Poll(ctx, "txreq_1", 10*time.Millisecond, 5*time.Second)
	if err == nil {
		t.Fatalf("caller cancellation must surface as an error, got %+v", result)
	}
	if result.State == StateTimeout {
		t.Fatal("cancellation must not be reported as a timeout outcome")
	}
}

func TestPollToleratesTransientReadFailures(t *testing.T) {
	var calls int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"state": "confirmed"})
	})
	result, err := c.Poll(context.Background(), "txreq_1", 10*time.Millisecond, 2*time.Second)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if result.State != StateConfirmed {
		t.Fatalf("expected confirmed after transient failure, got %s", result.State)
	}
}
