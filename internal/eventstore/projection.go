package eventstore

import (
	"context"
	"sort"
	"time"
)

// Build outcomes as they appear in summaries.
const (
	StatusRunning    = "running"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusSuperseded = "superseded"
)

// BuildSummary is a read model of one build reconstructed from its events.
type BuildSummary struct {
	BuildID      string        `json:"build_id"`
	Generation   uint64        `json:"generation"`
	Status       string        `json:"status"`
	Serve        bool          `json:"serve"`
	Clean        bool          `json:"clean"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration,omitempty"`
	Steps        int           `json:"steps"`
	ErrorStep    string        `json:"error_step,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// History summarizes every build with events between since and now, newest first.
// At most limit summaries are returned; limit <= 0 means no limit.
func History(ctx context.Context, store Store, since time.Time, limit int) ([]BuildSummary, error) {
	records, err := store.Between(ctx, since, time.Now().Add(time.Minute))
	if err != nil {
		return nil, err
	}
	return Summarize(records, limit), nil
}

// Summarize folds records into per-build summaries, newest first.
func Summarize(records []Record, limit int) []BuildSummary {
	byID := map[string]*BuildSummary{}
	for _, r := range records {
		s, ok := byID[r.BuildID]
		if !ok {
			s = &BuildSummary{BuildID: r.BuildID, Generation: r.Generation, Status: StatusRunning, StartedAt: r.At}
			byID[r.BuildID] = s
		}
		apply(s, r)
	}

	out := make([]BuildSummary, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].Generation > out[j].Generation
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func apply(s *BuildSummary, r Record) {
	switch r.Kind {
	case TypeBuildStarted:
		var p BuildStarted
		if r.Decode(&p) == nil {
			s.Generation, s.Serve, s.Clean = p.Generation, p.Serve, p.Clean
		}
		s.StartedAt = r.At
	case TypeStepCompleted:
		s.Steps++
	case TypeBuildCompleted:
		var p BuildCompleted
		if r.Decode(&p) == nil {
			s.Duration = msToDuration(p.DurationMS)
		}
		s.Status = StatusSucceeded
	case TypeBuildFailed:
		var p BuildFailed
		if r.Decode(&p) == nil {
			s.ErrorStep, s.ErrorMessage = p.Step, p.Error
			s.Duration = msToDuration(p.Duration)
		}
		s.Status = StatusFailed
	case TypeBuildSuperseded:
		var p BuildSuperseded
		if r.Decode(&p) == nil {
			s.ErrorStep = p.Step
		}
		s.Status = StatusSuperseded
	}
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
