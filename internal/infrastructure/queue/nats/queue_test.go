package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "no servers", err: fmt.Errorf("publish: %w", nats.ErrNoServers), retryable: true, record: true},
		{name: "connection closed", err: nats.ErrConnectionClosed, retryable: true, record: true},
		{name: "max payload", err: nats.ErrMaxPayload, retryable: false, record: true},
		{name: "canceled", err: context.Canceled, retryable: false, record: false},
	}
	for _, tc := range cases {
		got := classifyNATSError(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrNoServers); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(nats.ErrMaxPayload); errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("permanent errors must not be temporary: %v", err)
	}
	if wrapTemporaryIfNeeded(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestEncodeHistory(t *testing.T) {
	if _, err := encodeHistory(domain.HistoryEntry{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	raw, err := encodeHistory(domain.HistoryEntry{RequestID: "req-1", Status: "ok"})
	if err != nil {
		t.Fatalf("encodeHistory() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["request_id"] != "req-1" || decoded["status"] != "ok" {
		t.Fatalf("unexpected payload %v", decoded)
	}
}

func TestNewHistoryMsgSetsHeaders(t *testing.T) {
	msg, err := newHistoryMsg("advisor.history", domain.HistoryEntry{RequestID: "req-7", Status: "empty"})
	if err != nil {
		t.Fatalf("newHistoryMsg() error = %v", err)
	}
	if msg.Subject != "advisor.history" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if msg.Header.Get(headerMsgID) != "req-7" || msg.Header.Get(headerEventVersion) != historyEventVersion {
		t.Fatalf("unexpected headers %v", msg.Header)
	}
	if err := checkHistoryHeaders(msg.Header); err != nil {
		t.Fatalf("own headers rejected: %v", err)
	}
}

func TestCheckHistoryHeaders(t *testing.T) {
	if err := checkHistoryHeaders(nil); err != nil {
		t.Fatalf("header-less messages must pass, got %v", err)
	}
	future := nats.Header{}
	future.Set(headerEventVersion, "2")
	if err := checkHistoryHeaders(future); err == nil {
		t.Fatal("expected unsupported version error")
	}
	other := nats.Header{}
	other.Set(headerEventType, "listing.updated")
	if err := checkHistoryHeaders(other); err == nil {
		t.Fatal("expected unexpected type error")
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.ConnectTimeout <= 0 || opts.HandlerTimeout != 10*time.Second || opts.RetryOnFailedConnect == nil || !*opts.RetryOnFailedConnect {
		t.Fatalf("unexpected defaults %+v", opts)
	}
	off := false
	if got := (Options{RetryOnFailedConnect: &off}).withDefaults(); *got.RetryOnFailedConnect {
		t.Fatal("explicit RetryOnFailedConnect=false must be kept")
	}
}
