// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATS wraps a JetStream context as both Producer and Subscriber.
//
// Purpose: Default production broker transport.
// Domain: Events
// Invariants: Stream must exist or be created before Subscribe/Publish.
type NATS struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Config holds NATS connection options.
type Config struct {
	URLs       []string
	StreamName string
	Subjects   []string
}

// Dial connects to NATS and ensures the configured stream exists.
func Dial(ctx context.Context, cfg Config) (*NATS, error) {
	urls := cfg.URLs
	if len(urls) == 0 {
		urls = []string{nats.DefaultURL}
	}

	conn, err := nats.Connect(
		joinURLs(urls),
		nats.Name("authzcore"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	if cfg.StreamName != "" {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.StreamName,
			Subjects: cfg.Subjects,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to ensure stream %q: %w", cfg.StreamName, err)
		}
	}

	return &NATS{conn: conn, js: js}, nil
}

func joinURLs(urls []string) string {
	out := urls[0]
	for _, u := range urls[1:] {
		out += "," + u
	}
	return out
}

// Publish implements Producer.
func (n *NATS) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	msg := nats.NewMsg(topic)
	msg.Data = payload
	if key != "" {
		msg.Header.Set("Key", key)
	}
	_, err := n.js.PublishMsg(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to publish to %q: %w", topic, err)
	}
	return nil
}

// Subscribe implements Subscriber. It creates a durable pull consumer
// named after the topic, pulls in batches of batchSize, and fans
// messages out to workers goroutines. Handler errors classified
// retryable by the caller are left unacknowledged (Nak); everything
// else is acknowledged (Ack) or terminated (Term) for malformed input
// per spec.md §5.
func (n *NATS) Subscribe(ctx context.Context, topic string, workers int, batchSize int, handler Handler) error {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	cons, err := n.js.CreateOrUpdateConsumer(ctx, streamNameFor(topic), jetstream.ConsumerConfig{
		Durable:       "authzcore-" + topic,
		FilterSubject: topic,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
		BackOff: []time.Duration{
			1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer for %q: %w", topic, err)
	}

	jobs := make(chan jetstream.Msg, batchSize)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				n.handleOne(ctx, msg, handler)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		default:
		}

		batch, err := cons.Fetch(batchSize, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
				continue
			}
			slog.ErrorContext(ctx, "jetstream fetch failed", "topic", topic, "error", err)
			continue
		}
		for msg := range batch.Messages() {
			jobs <- msg
		}
	}
}

func (n *NATS) handleOne(ctx context.Context, msg jetstream.Msg, handler Handler) {
	meta, _ := msg.Metadata()
	attempt := 1
	if meta != nil {
		attempt = int(meta.NumDelivered)
	}

	m := Message{Data: msg.Data(), Attempt: attempt}
	if key := msg.Headers().Get("Key"); key != "" {
		m.Key = key
	}

	err := handler(ctx, m)
	if err == nil {
		_ = msg.Ack()
		return
	}

	if IsRetryable(err) {
		_ = msg.Nak()
		return
	}
	_ = msg.Term()
}

// retryable marks errors that should be redelivered rather than
// dead-lettered immediately.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

// Retryable wraps err so IsRetryable reports true for it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryable{err: err}
}

// IsRetryable reports whether err was wrapped with Retryable.
func IsRetryable(err error) bool {
	var r retryable
	return errors.As(err, &r)
}

func streamNameFor(topic string) string {
	// authzcore provisions one stream per subject-space; callers configure
	// Config.StreamName to match their subject hierarchy. Falling back to
	// the topic itself keeps single-subject setups (as used in tests)
	// working without extra configuration.
	return topic
}

// Close drains the connection.
func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
