// Package nats carries ingest requests to workers and index change events to API instances.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/infrastructure/resilience"
)

var (
	_ ports.MessageQueue = (*Queue)(nil)
	_ ports.IndexEvents  = (*Queue)(nil)
)

const workerGroup = "workers"

type Queue struct {
	conn           *nats.Conn
	ingestSubject  string
	indexedSubject string
	executor       *resilience.Executor
	logger         *slog.Logger
}

type Options struct {
	IngestSubject        string
	IndexedSubject       string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	ingestSubject := options.IngestSubject
	if ingestSubject == "" {
		ingestSubject = "documents.ingest"
	}
	indexedSubject := options.IndexedSubject
	if indexedSubject == "" {
		indexedSubject = "documents.indexed"
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("universal-system"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		ingestSubject:  ingestSubject,
		indexedSubject: indexedSubject,
		executor:       options.ResilienceExecutor,
		logger:         logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishIngestRequested(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.ingestSubject, documentID)
}

func (q *Queue) PublishIndexUpdated(ctx context.Context, namespace string) error {
	return q.publish(ctx, q.indexedSubject, namespace)
}

func (q *Queue) publish(ctx context.Context, subject, payload string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, []byte(payload)); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, resilience.OpNATSPublish, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapPublishError(err)
	}
	return nil
}

// SubscribeIngestRequested delivers each request to one worker of the group and blocks until ctx is done.
func (q *Queue) SubscribeIngestRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.ingestSubject, workerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			q.logger.Error("worker_handler_failed", "document_id", string(msg.Data), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	return q.serve(ctx, sub)
}

// SubscribeIndexUpdated delivers every event to every subscriber and blocks until ctx is done.
func (q *Queue) SubscribeIndexUpdated(ctx context.Context, handler func(context.Context, string)) error {
	sub, err := q.conn.Subscribe(q.indexedSubject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		handler(ctx, string(msg.Data))
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	return q.serve(ctx, sub)
}

func (q *Queue) serve(ctx context.Context, sub *nats.Subscription) error {
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
