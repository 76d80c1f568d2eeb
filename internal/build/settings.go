package build

import (
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/engine"
	"git.home.luguber.info/inful/sitebuilder/internal/modules"
)

// Settings is the state of one build attempt. It is created when the build
// starts, threaded through every step and dropped when the build ends.
type Settings struct {
	Config     *config.Config
	Serve      bool
	Clean      bool
	Pipeline   engine.Pipeline
	Modules    *modules.Session
	Generation uint64
	BuildID    string
}

// Outcome is the final status of a build.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFailed     Outcome = "failed"
	OutcomeSuperseded Outcome = "superseded"
)

// Report describes a finished build attempt.
type Report struct {
	BuildID       string
	Generation    uint64
	Serve         bool
	Clean         bool
	Start         time.Time
	End           time.Time
	Duration      time.Duration
	Steps         []string // steps that ran, in order
	StepDurations map[string]time.Duration
	HooksInvoked  []string
	Units         []string // units registered on the pipeline
	Outcome       Outcome
	FailedStep    string
}

func newReport(s *Settings, start time.Time) *Report {
	return &Report{
		BuildID:       s.BuildID,
		Generation:    s.Generation,
		Serve:         s.Serve,
		Clean:         s.Clean,
		Start:         start,
		StepDurations: map[string]time.Duration{},
	}
}

func (r *Report) finish(outcome Outcome) {
	r.End = time.Now()
	r.Duration = r.End.Sub(r.Start)
	r.Outcome = outcome
}
