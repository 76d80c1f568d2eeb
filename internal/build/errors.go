package build

import (
	"errors"
	"fmt"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/hooks"
)

// Error context keys attached to build errors.
const (
	ctxCheckpoint = "checkpoint"
	ctxStage      = "stage"
	ctxGeneration = "generation"
	ctxCurrent    = "current_generation"
	ctxStep       = "step"
)

func hookError(cp hooks.Checkpoint, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryHook, fmt.Sprintf("hook %s failed", cp)).
		WithContext(ctxCheckpoint, cp.String()).
		Build()
}

func stageError(stage string, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryStage, fmt.Sprintf("stage %s failed to register", stage)).
		WithContext(ctxStage, stage).
		Build()
}

func executionError(err error) error {
	return ferrors.WrapError(err, ferrors.CategoryExecution, "pipeline execution failed").Build()
}

func postProcessError(err error) error {
	return ferrors.WrapError(err, ferrors.CategoryPostProcess, "post-process failed").Build()
}

func supersededError(gen, current uint64, step string) error {
	return ferrors.NewError(ferrors.CategorySuperseded,
		fmt.Sprintf("another build started - aborting build %d", gen)).
		Info().
		WithContext(ctxGeneration, gen).
		WithContext(ctxCurrent, current).
		WithContext(ctxStep, step).
		Build()
}

// IsSuperseded reports whether err means a newer build overtook this one.
// Superseded builds are not failures and should not be reported as such.
func IsSuperseded(err error) bool { return ferrors.HasCategory(err, ferrors.CategorySuperseded) }

// IsHookError reports whether a user hook failed.
func IsHookError(err error) bool { return ferrors.HasCategory(err, ferrors.CategoryHook) }

// IsStageError reports whether a stage failed to register its units.
func IsStageError(err error) bool { return ferrors.HasCategory(err, ferrors.CategoryStage) }

// IsExecutionError reports whether the pipeline failed while executing.
func IsExecutionError(err error) bool { return ferrors.HasCategory(err, ferrors.CategoryExecution) }

// IsPostProcessError reports whether post-processing failed.
func IsPostProcessError(err error) bool {
	return ferrors.HasCategory(err, ferrors.CategoryPostProcess)
}

// FailedCheckpoint returns the checkpoint of a hook error.
func FailedCheckpoint(err error) (hooks.Checkpoint, bool) {
	for err != nil {
		if ce, ok := err.(*ferrors.ClassifiedError); ok && ce.Category() == ferrors.CategoryHook {
			name, _ := ce.Context().GetString(ctxCheckpoint)
			return hooks.ParseCheckpoint(name)
		}
		err = errors.Unwrap(err)
	}
	return 0, false
}
