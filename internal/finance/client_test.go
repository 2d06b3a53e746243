package finance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testRequisition() Requisition {
	return Requisition{
		ClaimID:       7,
		ContractID:    "P00001",
		ClaimantName:  "Rudo Chikore",
		AccountNumber: "1234567890",
		Amount:        decimal.NewFromInt(1000),
	}
}

func TestPostRequisition_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/requisitions" {
			t.Fatalf("path = %s, want /api/requisitions", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %q, want application/json", ct)
		}

		var got Requisition
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ContractID != "P00001" || !got.Amount.Equal(decimal.NewFromInt(1000)) {
			t.Fatalf("unexpected requisition: %+v", got)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	code, retry, err := client.PostRequisition(ctx, testRequisition())
	if err != nil {
		t.Fatalf("PostRequisition error: %v", err)
	}
	if code != http.StatusCreated {
		t.Fatalf("status code = %d, want %d", code, http.StatusCreated)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
}

func TestPostRequisition_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	code, retry, err := client.PostRequisition(context.Background(), testRequisition())
	if err != nil {
		t.Fatalf("PostRequisition error: %v", err)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retry != 5*time.Second {
		t.Fatalf("retryAfter = %v, want 5s", retry)
	}
}

func TestSendRequisition_RetriesOnceAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	if err := NewClient(ts.URL).SendRequisition(context.Background(), testRequisition()); err != nil {
		t.Fatalf("SendRequisition error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestSendRequisition_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	if err := NewClient(ts.URL).SendRequisition(context.Background(), testRequisition()); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestSendRequisition_NotConfigured(t *testing.T) {
	if err := NewClient("").SendRequisition(context.Background(), testRequisition()); err != ErrNotConfigured {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSendRequisition_GivesUpAfterSecondRateLimit(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	if err := NewClient(ts.URL).SendRequisition(context.Background(), testRequisition()); err == nil {
		t.Fatalf("expected error when rate limited twice")
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}
