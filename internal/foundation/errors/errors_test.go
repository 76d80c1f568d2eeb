package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := ConfigError("invalid configuration").
			WithContext("file", "sitebuilder.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())
		file, ok := err.Context().GetString("file")
		require.True(t, ok)
		assert.Equal(t, "sitebuilder.yaml", file)
		assert.Equal(t, "[config:fatal] invalid configuration", err.Error())
	})

	t.Run("Wrapped cause is reachable", func(t *testing.T) {
		cause := stderrors.New("boom")
		err := WrapError(cause, CategoryHook, "hook failed").Build()

		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("Detection through fmt wrapping", func(t *testing.T) {
		inner := ModuleError("module missing").Build()
		err := fmt.Errorf("load: %w", inner)

		_, ok := AsClassified(err)
		assert.True(t, ok)
		assert.True(t, HasCategory(err, CategoryModule))
		assert.Equal(t, CategoryModule, GetCategory(err))
		assert.Equal(t, SeverityWarning, GetSeverity(err))
	})

	t.Run("HasCategory walks past other categories", func(t *testing.T) {
		inner := NewError(CategorySuperseded, "stale").Build()
		outer := WrapError(inner, CategoryExecution, "execute").Build()

		assert.True(t, HasCategory(outer, CategorySuperseded))
		assert.True(t, HasCategory(outer, CategoryExecution))
		assert.False(t, HasCategory(outer, CategoryHook))
	})

	t.Run("Unclassified defaults", func(t *testing.T) {
		err := stderrors.New("plain")
		assert.Equal(t, CategoryInternal, GetCategory(err))
		assert.Equal(t, SeverityError, GetSeverity(err))
	})

	t.Run("WithContext copies", func(t *testing.T) {
		base := NewError(CategoryStage, "stage").Build()
		derived := base.WithContext("stage", "css")

		_, ok := base.Context().GetString("stage")
		assert.False(t, ok)
		v, ok := derived.Context().GetString("stage")
		require.True(t, ok)
		assert.Equal(t, "css", v)
	})
}

func TestCLIErrorAdapter(t *testing.T) {
	var out bytes.Buffer
	a := NewCLIErrorAdapter(false, nil)
	a.out = &out

	tests := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{stderrors.New("x"), 1},
		{ValidationError("bad").Build(), 2},
		{ConfigError("bad").Build(), 7},
		{NewError(CategoryHook, "hook").Build(), 11},
		{NewError(CategoryExecution, "exec").Build(), 11},
		{NewError(CategorySuperseded, "stale").Build(), 0},
		{NewError(CategoryNetwork, "listen").Build(), 8},
		{NewError("custom", "x").Build(), 1},
		{WatchError("watch").Build(), 12},
		{InternalError("oops").Build(), 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, a.ExitCodeFor(tt.err), "err=%v", tt.err)
	}

	code := a.Handle(WrapError(stderrors.New("disk"), CategoryExecution, "execute pipeline").Build())
	assert.Equal(t, 11, code)
	assert.Equal(t, "Error: execute pipeline: disk\n", out.String())

	built := WatchError("w").Build()
	_ = built.WithContext("k", "v")
	assert.Empty(t, built.Context(), "builder output must not share context with copies")

	assert.Equal(t, "Internal error occurred (use -v for details)", a.FormatError(InternalError("x").Build()))
}
