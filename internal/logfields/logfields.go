package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuild      = "build"
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyStep       = "step"
	KeyCheckpoint = "checkpoint"
	KeyUnit       = "unit"
	KeyModule     = "module"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyClients    = "clients"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Build(generation uint64) slog.Attr { return slog.Uint64(KeyBuild, generation) }
func BuildID(id string) slog.Attr       { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func Step(name string) slog.Attr        { return slog.String(KeyStep, name) }
func Checkpoint(name string) slog.Attr  { return slog.String(KeyCheckpoint, name) }
func Unit(name string) slog.Attr        { return slog.String(KeyUnit, name) }
func Module(name string) slog.Attr      { return slog.String(KeyModule, name) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Clients(n int) slog.Attr           { return slog.Int(KeyClients, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
