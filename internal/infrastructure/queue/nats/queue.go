package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/resilience"
)

const (
	historyQueueGroup = "history-writers"

	headerEventType    = "Event-Type"
	headerEventVersion = "Event-Version"
	headerMsgID        = "Nats-Msg-Id"

	historyEventType    = "analysis.history"
	historyEventVersion = "1"
)

// Queue carries analysis history from the API to the history worker.
type Queue struct {
	conn           *nats.Conn
	subject        string
	executor       *resilience.Executor
	handlerTimeout time.Duration
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	HandlerTimeout       time.Duration
	ResilienceExecutor   *resilience.Executor
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.RetryOnFailedConnect == nil {
		retry := true
		o.RetryOnFailedConnect = &retry
	}
	if o.HandlerTimeout <= 0 {
		o.HandlerTimeout = 10 * time.Second
	}
	return o
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	options = options.withDefaults()

	conn, err := nats.Connect(
		url,
		nats.Name("homebuyer-advisor"),
		nats.Timeout(options.ConnectTimeout),
		nats.ReconnectWait(options.ReconnectWait),
		nats.MaxReconnects(options.MaxReconnects),
		nats.RetryOnFailedConnect(*options.RetryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "subject", subject, "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		executor:       options.ResilienceExecutor,
		handlerTimeout: options.HandlerTimeout,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishHistory sends one history entry keyed by its request id so that a
// redelivered entry lands on the same row.
func (q *Queue) PublishHistory(ctx context.Context, entry domain.HistoryEntry) error {
	msg, err := newHistoryMsg(q.subject, entry)
	if err != nil {
		return err
	}
	if limit := q.conn.MaxPayload(); limit > 0 && int64(len(msg.Data)) > limit {
		return domain.WrapError(domain.ErrValidation, "nats publish",
			fmt.Errorf("history entry is %d bytes, server limit is %d", len(msg.Data), limit))
	}

	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeHistory blocks until ctx is done, handing each message to handler
// within the queue group, then drains the subscription.
func (q *Queue) SubscribeHistory(ctx context.Context, handler func(context.Context, []byte) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, historyQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		if err := checkHistoryHeaders(msg.Header); err != nil {
			slog.Warn("history_event_skipped", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithTimeout(ctx, q.handlerTimeout)
		defer cancel()
		if err := handler(handlerCtx, msg.Data); err != nil {
			slog.Error("history_ingest_failed",
				"subject", msg.Subject,
				"request_id", msg.Header.Get(headerMsgID),
				"bytes", len(msg.Data),
				"error_kind", domain.KindOf(err),
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func newHistoryMsg(subject string, entry domain.HistoryEntry) (*nats.Msg, error) {
	payload, err := encodeHistory(entry)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(headerEventType, historyEventType)
	msg.Header.Set(headerEventVersion, historyEventVersion)
	msg.Header.Set(headerMsgID, entry.RequestID)
	return msg, nil
}

// checkHistoryHeaders accepts header-less messages from older publishers.
func checkHistoryHeaders(h nats.Header) error {
	if h == nil {
		return nil
	}
	if t := h.Get(headerEventType); t != "" && t != historyEventType {
		return fmt.Errorf("unexpected event type %q", t)
	}
	if v := h.Get(headerEventVersion); v != "" && v != historyEventVersion {
		return fmt.Errorf("unsupported event version %q", v)
	}
	return nil
}

func encodeHistory(entry domain.HistoryEntry) ([]byte, error) {
	if entry.RequestID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "encode history", errors.New("request_id is empty"))
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal history entry: %w", err)
	}
	return payload, nil
}
