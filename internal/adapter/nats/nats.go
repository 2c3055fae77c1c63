// Package nats implements the message queue port using NATS JetStream.
// Incoming messages are schema-validated before the handler runs; messages
// that fail validation or exhaust their retries move to a per-subject dead
// letter subject so one poison message can never wedge a consumer.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/port/messagequeue"
)

const streamName = "DOCUFLOW"

const (
	headerWorkflowID = "Docuflow-Workflow-Id"
	headerRetryCount = "Docuflow-Retry-Count"

	// maxRetries is how many redeliveries a failing message gets before
	// it moves to the dead letter subject.
	maxRetries = 3
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream stream
// exists. The stream captures all pipeline subjects, including their dead
// letter children.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"workflows.>", "tasks.>", "agents.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish sends a message to the given subject. A workflow ID on the
// context travels in a header so consumers can restore it.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	if id := logger.WorkflowID(ctx); id != "" {
		msg.Header.Set(headerWorkflowID, id)
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject. Payloads
// failing schema validation go straight to the dead letter subject; a
// handler error requeues the message until maxRetries, then dead-letters it.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := messagequeue.Validate(msg.Subject(), msg.Data()); err != nil {
			slog.Error("message failed validation", "subject", msg.Subject(), "error", err)
			q.moveToDLQ(msg)
			return
		}

		msgCtx := context.Background()
		if id := msg.Headers().Get(headerWorkflowID); id != "" {
			msgCtx = logger.WithWorkflowID(msgCtx, id)
		}

		if err := handler(msgCtx, msg.Subject(), msg.Data()); err != nil {
			slog.Error("message handler failed", "subject", msg.Subject(), "error", err)
			q.retryOrDLQ(msg)
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// Drain gracefully drains all subscriptions before closing.
func (q *Queue) Drain() error {
	return q.nc.Drain()
}

// Close shuts down the NATS connection immediately.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the queue is currently connected.
func (q *Queue) IsConnected() bool {
	return q.nc != nil && q.nc.IsConnected()
}

// --- failure handling ---

// retryOrDLQ republishes a failed message with an incremented retry count,
// or dead-letters it once the count is exhausted. The original message is
// acked either way; redelivery happens through the republish.
func (q *Queue) retryOrDLQ(msg jetstream.Msg) {
	retries := retryCount(msg.Headers())
	if retries >= maxRetries {
		q.moveToDLQ(msg)
		return
	}

	retry := &nats.Msg{
		Subject: msg.Subject(),
		Data:    msg.Data(),
		Header:  copyHeader(msg.Headers()),
	}
	retry.Header.Set(headerRetryCount, strconv.Itoa(retries+1))
	if _, err := q.js.PublishMsg(context.Background(), retry); err != nil {
		slog.Error("nats retry publish failed", "subject", msg.Subject(), "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.Error("nats nak failed", "error", nakErr)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "error", err)
	}
}

// moveToDLQ publishes the payload to the subject's dead letter child and
// acks the original.
func (q *Queue) moveToDLQ(msg jetstream.Msg) {
	dlq := &nats.Msg{
		Subject: msg.Subject() + ".dlq",
		Data:    msg.Data(),
		Header:  copyHeader(msg.Headers()),
	}
	if _, err := q.js.PublishMsg(context.Background(), dlq); err != nil {
		slog.Error("nats dlq publish failed", "subject", dlq.Subject, "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.Error("nats nak failed", "error", nakErr)
		}
		return
	}
	slog.Warn("message moved to dlq", "subject", dlq.Subject)
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "error", err)
	}
}

func retryCount(hdrs nats.Header) int {
	n, err := strconv.Atoi(hdrs.Get(headerRetryCount))
	if err != nil {
		return 0
	}
	return n
}

func copyHeader(hdrs nats.Header) nats.Header {
	out := nats.Header{}
	for k, vs := range hdrs {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}
