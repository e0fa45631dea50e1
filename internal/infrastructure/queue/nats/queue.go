package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docstream/internal/core/ports"
	"github.com/kirillkom/docstream/internal/infrastructure/resilience"
)

const (
	// maxTaskAttempts bounds queue-level redelivery of a failed stage.
	// Task.Attempt counts executions already consumed.
	maxTaskAttempts = 3

	defaultRetryBackoff = 2 * time.Second
)

// Queue schedules pipeline stage tasks over NATS. Each lane maps to its own
// subject under a common prefix and its own worker queue group, so stages on
// different lanes never compete for the same subscribers.
type Queue struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor

	// publish is the raw wire send, split out from conn so the scheduling
	// logic around it stays testable without a broker.
	publish      func(subject string, payload []byte) error
	retryBackoff time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, prefix string) (*Queue, error) {
	return NewWithOptions(url, prefix, Options{})
}

func NewWithOptions(url, prefix string, options Options) (*Queue, error) {
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

	conn, err := nats.Connect(
		url,
		nats.Name("docstream"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:         conn,
		prefix:       prefix,
		executor:     options.ResilienceExecutor,
		publish:      conn.Publish,
		retryBackoff: defaultRetryBackoff,
		done:         make(chan struct{}),
	}, nil
}

func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		if q.conn != nil {
			q.conn.Close()
		}
	})
}

func (q *Queue) subject(lane ports.Lane) string {
	return q.prefix + "." + string(lane)
}

func (q *Queue) Enqueue(ctx context.Context, lane ports.Lane, task ports.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	call := func(_ context.Context) error {
		if err := q.publish(q.subject(lane), payload); err != nil {
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

// EnqueueAfter delays the publish in-process. The timer is tied to the
// queue's lifetime, not the scheduling request's context: stage handlers run
// under a per-message context that ends when the handler returns, and a
// deferral must outlive that. Delays here are short stage backoffs, not
// durable schedules; a crashed process loses only a retry that the stage's
// idempotence makes safe to miss.
func (q *Queue) EnqueueAfter(ctx context.Context, lane ports.Lane, task ports.Task, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, lane, task)
	}

	timer := time.AfterFunc(delay, func() {
		select {
		case <-q.done:
			return
		default:
		}
		deadline, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := q.Enqueue(deadline, lane, task); err != nil {
			log.Printf("delayed enqueue failed for doc=%s stage=%s: %v", task.DocumentID, task.Stage, err)
		}
	})

	go func() {
		<-q.done
		timer.Stop()
	}()
	return nil
}

func (q *Queue) Subscribe(ctx context.Context, lane ports.Lane, handler func(context.Context, ports.Task) error) error {
	group := "workers." + string(lane)
	sub, err := q.conn.QueueSubscribe(q.subject(lane), group, func(msg *nats.Msg) {
		q.dispatch(ctx, lane, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", lane, err)
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

// dispatch runs one task through the handler and applies the queue-level
// retry policy: a retryable failure is re-enqueued on the same lane with an
// incremented attempt count and exponential backoff, until the attempt
// budget is spent. Core NATS never redelivers on its own.
func (q *Queue) dispatch(ctx context.Context, lane ports.Lane, data []byte, handler func(context.Context, ports.Task) error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}

	var task ports.Task
	if err := json.Unmarshal(data, &task); err != nil {
		log.Printf("discarding malformed task on %s: %v", q.subject(lane), err)
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	err := handler(handlerCtx, task)
	if err == nil {
		return
	}
	log.Printf("worker handler error for doc=%s stage=%s attempt=%d: %v", task.DocumentID, task.Stage, task.Attempt, err)

	if !retryableTaskError(err) {
		return
	}
	if task.Attempt+1 >= maxTaskAttempts {
		log.Printf("dropping task doc=%s stage=%s: attempt budget spent", task.DocumentID, task.Stage)
		return
	}

	retry := task
	retry.Attempt++
	backoff := q.retryBackoff << uint(task.Attempt)
	if err := q.EnqueueAfter(context.Background(), lane, retry, backoff); err != nil {
		log.Printf("requeue failed for doc=%s stage=%s: %v", task.DocumentID, task.Stage, err)
	}
}
