package eventstore

import (
	"encoding/json"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Record kinds.
const (
	TypeBuildStarted    = "BuildStarted"
	TypeStepCompleted   = "StepCompleted"
	TypeBuildCompleted  = "BuildCompleted"
	TypeBuildFailed     = "BuildFailed"
	TypeBuildSuperseded = "BuildSuperseded"
)

// BuildStarted is the payload of a BuildStarted event.
type BuildStarted struct {
	Generation uint64 `json:"generation"`
	Serve      bool   `json:"serve"`
	Clean      bool   `json:"clean"`
	Source     string `json:"source"`
	Dest       string `json:"destination"`
}

// StepCompleted is the payload of a StepCompleted event.
type StepCompleted struct {
	Step       string  `json:"step"`
	DurationMS float64 `json:"duration_ms"`
}

// BuildCompleted is the payload of a BuildCompleted event.
type BuildCompleted struct {
	DurationMS float64  `json:"duration_ms"`
	Units      []string `json:"units"`
}

// BuildFailed is the payload of a BuildFailed event.
type BuildFailed struct {
	Step     string  `json:"step"`
	Category string  `json:"category"`
	Error    string  `json:"error"`
	Duration float64 `json:"duration_ms"`
}

// BuildSuperseded is the payload of a BuildSuperseded event.
type BuildSuperseded struct {
	Step    string `json:"step"`
	Current uint64 `json:"current_generation"`
}

// NewRecord encodes payload as the data of a record of the given kind.
func NewRecord(buildID string, generation uint64, kind string, payload any) (Record, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Record{}, ferrors.WrapError(err, ferrors.CategoryInternal, "marshal event payload").
			WithContext("build_id", buildID).
			WithContext("kind", kind).
			Build()
	}
	return Record{BuildID: buildID, Generation: generation, Kind: kind, At: time.Now(), Data: data}, nil
}

// Decode unmarshals the data of r into out.
func (r Record) Decode(out any) error {
	if err := json.Unmarshal(r.Data, out); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "unmarshal event payload").
			WithContext("build_id", r.BuildID).
			WithContext("kind", r.Kind).
			Build()
	}
	return nil
}
