package watch

import (
	"sync"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// Notifier tells connected browsers to reload.
type Notifier interface {
	RefreshAll()
}

// refresher applies the configured refresh policy to successful rebuilds.
type refresher interface {
	BuildSucceeded()
	Stop()
}

func newRefresher(cfg config.LiveReloadConfig, n Notifier) refresher {
	if cfg.Refresh == config.RefreshDebounced && cfg.QuietWindow > 0 {
		return &quietRefresher{n: n, window: cfg.QuietWindow}
	}
	return immediateRefresher{n: n}
}

// immediateRefresher sends one global refresh per successful build.
type immediateRefresher struct{ n Notifier }

func (r immediateRefresher) BuildSucceeded() { r.n.RefreshAll() }
func (immediateRefresher) Stop()             {}

// quietRefresher sends one refresh once no build has succeeded for window.
type quietRefresher struct {
	n      Notifier
	window time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func (r *quietRefresher) BuildSucceeded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.window, r.fire)
}

func (r *quietRefresher) fire() {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if !stopped {
		r.n.RefreshAll()
	}
}

func (r *quietRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
}
