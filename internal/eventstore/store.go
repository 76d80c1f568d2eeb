// Package eventstore records build lifecycle events so past builds can be
// inspected with the history command.
package eventstore

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one lifecycle event of a build as persisted in the store.
type Record struct {
	Seq        int64 // assigned by the store on append
	BuildID    string
	Generation uint64
	Kind       string
	At         time.Time
	Data       json.RawMessage
}

// Store persists build records.
type Store interface {
	Append(ctx context.Context, r Record) error
	// ForBuild returns the records of one build in append order.
	ForBuild(ctx context.Context, buildID string) ([]Record, error)
	// Between returns records with from <= At <= to in append order.
	Between(ctx context.Context, from, to time.Time) ([]Record, error)
	Close() error
}
