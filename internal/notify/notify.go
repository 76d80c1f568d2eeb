// Package notify fans browser refresh notifications out to more than one sink.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
)

// Notifier receives one call per successful rebuild.
type Notifier interface {
	RefreshAll()
}

// Multi calls every non-nil notifier in order.
type Multi []Notifier

// RefreshAll implements Notifier.
func (m Multi) RefreshAll() {
	for _, n := range m {
		if n != nil {
			n.RefreshAll()
		}
	}
}

// RefreshMessage is the payload published for each refresh.
type RefreshMessage struct {
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// publisher is the subset of *nats.Conn used by NATS.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
}

// NATS publishes a RefreshMessage on a subject for every refresh.
type NATS struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	seq     atomic.Uint64
}

// NewNATS connects to url, retrying the initial connection per policy. The
// connection is owned by the returned notifier.
func NewNATS(ctx context.Context, url, subject string, policy retry.Policy) (*NATS, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	var conn *nats.Conn
	err := policy.Do(ctx, func(attempt int) error {
		var err error
		conn, err = nats.Connect(url,
			nats.Name("sitebuilder"),
			nats.Timeout(timeout),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			slog.Debug("NATS connect failed", slog.Int("attempt", attempt), logfields.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS refresh notifier connected", slog.String("url", url), slog.String("subject", subject))
	return &NATS{conn: conn, pub: conn, subject: subject}, nil
}

// RefreshAll implements Notifier. Publish failures are logged, never returned.
func (n *NATS) RefreshAll() {
	seq := n.seq.Add(1)
	data, err := json.Marshal(RefreshMessage{Sequence: seq, Timestamp: time.Now().UTC()})
	if err != nil {
		slog.Warn("Failed to encode refresh message", logfields.Error(err))
		return
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		slog.Warn("Failed to publish refresh", slog.String("subject", n.subject), logfields.Error(err))
		return
	}
	if err := n.pub.FlushTimeout(2 * time.Second); err != nil {
		slog.Warn("Failed to flush refresh", slog.String("subject", n.subject), logfields.Error(err))
		return
	}
	slog.Debug("Published refresh", slog.String("subject", n.subject), slog.Uint64("sequence", seq))
}

// Close drains and closes the connection.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
