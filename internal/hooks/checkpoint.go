// Package hooks defines the extension points user code can attach to.
package hooks

import (
	"context"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
)

// Checkpoint identifies a point in the build where a hook may run.
type Checkpoint int

const (
	BuildBefore Checkpoint = iota
	BuildAfter
	MetadataBefore
	MetadataAfter
	ContentsBefore
	ContentsAfter
	LayoutsBefore
	LayoutsAfter
	CSSBefore
	CSSAfter
	RedirectsBefore
	RedirectsAfter
	ServeBefore
	ServeAfter

	numCheckpoints
)

var checkpointNames = [numCheckpoints]string{
	BuildBefore:     "buildBefore",
	BuildAfter:      "buildAfter",
	MetadataBefore:  "metadataBefore",
	MetadataAfter:   "metadataAfter",
	ContentsBefore:  "contentsBefore",
	ContentsAfter:   "contentsAfter",
	LayoutsBefore:   "layoutsBefore",
	LayoutsAfter:    "layoutsAfter",
	CSSBefore:       "cssBefore",
	CSSAfter:        "cssAfter",
	RedirectsBefore: "redirectsBefore",
	RedirectsAfter:  "redirectsAfter",
	ServeBefore:     "serveBefore",
	ServeAfter:      "serveAfter",
}

// String returns the checkpoint's configuration name, e.g. "layoutsBefore".
func (c Checkpoint) String() string {
	if c < 0 || c >= numCheckpoints {
		return "unknown"
	}
	return checkpointNames[c]
}

// Valid reports whether c is one of the declared checkpoints.
func (c Checkpoint) Valid() bool { return c >= 0 && c < numCheckpoints }

// All returns every checkpoint in declaration order.
func All() []Checkpoint {
	out := make([]Checkpoint, numCheckpoints)
	for i := range out {
		out[i] = Checkpoint(i)
	}
	return out
}

// ParseCheckpoint maps a configuration name back to its Checkpoint.
func ParseCheckpoint(name string) (Checkpoint, bool) {
	for i, n := range checkpointNames {
		if n == name {
			return Checkpoint(i), true
		}
	}
	return 0, false
}

// Func is a hook callback. It receives the pipeline handle of the build in
// progress and may register additional units on it.
type Func func(ctx context.Context, p engine.Pipeline) error

// Set holds at most one callback per checkpoint. The zero value has none.
type Set struct {
	slots [numCheckpoints]Func
}

// Get returns the callback for c, or nil.
func (s *Set) Get(c Checkpoint) Func {
	if s == nil || !c.Valid() {
		return nil
	}
	return s.slots[c]
}

// Set installs fn at c, replacing any existing callback. A nil fn clears the slot.
func (s *Set) Set(c Checkpoint, fn Func) {
	if !c.Valid() {
		return
	}
	s.slots[c] = fn
}

// SetIfEmpty installs fn at c only when no callback is present.
func (s *Set) SetIfEmpty(c Checkpoint, fn Func) bool {
	if !c.Valid() || s.slots[c] != nil {
		return false
	}
	s.slots[c] = fn
	return true
}

// Len reports how many checkpoints have callbacks.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, fn := range s.slots {
		if fn != nil {
			n++
		}
	}
	return n
}
