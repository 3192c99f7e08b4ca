package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	err := NewError(CategoryLaunch, "run task failed").Build()

	assert.Equal(t, CategoryLaunch, err.Category())
	assert.Equal(t, SeverityError, err.Severity())
	assert.Equal(t, "launch: run task failed", err.Error())
	assert.False(t, err.Retryable())
}

func TestBuilderWithCauseAndContext(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := WrapError(cause, CategoryUpload, "put object failed").
		WithContext("key", "__outputs/abc/index.html").
		WithCategory(CategoryNetwork).
		Retryable().
		Build()

	assert.Equal(t, CategoryNetwork, err.Category())
	assert.True(t, err.Retryable())
	assert.Same(t, cause, err.Cause())
	assert.True(t, stderrors.Is(err, cause))
	key, ok := err.Context().GetString("key")
	require.True(t, ok)
	assert.Equal(t, "__outputs/abc/index.html", key)
	assert.Equal(t, "network: put object failed: connection refused", err.Error())
}

func TestBuilderReuseDoesNotShareContext(t *testing.T) {
	b := RoutingError("bad host")
	first := b.Build()
	second := b.WithContext("host", "..").Build()

	_, ok := first.Context().Get("host")
	assert.False(t, ok)
	v, ok := second.Context().GetString("host")
	require.True(t, ok)
	assert.Equal(t, "..", v)
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name      string
		builder   *ErrorBuilder
		category  ErrorCategory
		severity  ErrorSeverity
		retryable bool
	}{
		{"validation", ValidationError("bad"), CategoryValidation, SeverityError, false},
		{"config", ConfigError("bad"), CategoryConfig, SeverityFatal, false},
		{"launch", LaunchError("bad"), CategoryLaunch, SeverityError, false},
		{"build", BuildError("bad"), CategoryBuild, SeverityFatal, false},
		{"upload", UploadError("bad"), CategoryUpload, SeverityError, false},
		{"routing", RoutingError("bad"), CategoryRouting, SeverityWarning, false},
		{"not found", NotFoundError("bad"), CategoryNotFound, SeverityInfo, false},
		{"network", NetworkError("bad"), CategoryNetwork, SeverityError, true},
		{"internal", InternalError("bad"), CategoryInternal, SeverityFatal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder.Build()
			assert.Equal(t, tt.category, err.Category())
			assert.Equal(t, tt.severity, err.Severity())
			assert.Equal(t, tt.retryable, err.Retryable())
		})
	}
}

func TestAsClassifiedWalksChain(t *testing.T) {
	inner := BuildError("build command exited 2").Build()
	wrapped := fmt.Errorf("worker: %w", inner)

	got, ok := AsClassified(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.True(t, IsClassified(wrapped))
	assert.True(t, HasCategory(wrapped, CategoryBuild))
	assert.False(t, HasCategory(wrapped, CategoryUpload))
	assert.Equal(t, CategoryBuild, CategoryOf(wrapped))

	assert.False(t, IsClassified(stderrors.New("plain")))
	assert.Equal(t, CategoryInternal, CategoryOf(stderrors.New("plain")))
}

func TestClassifiedErrorIs(t *testing.T) {
	a := ValidationError("gitUrl is required").Build()
	b := ValidationError("gitUrl is required").WithContext("field", "gitUrl").Build()
	c := ValidationError("other").Build()

	assert.True(t, stderrors.Is(b, a))
	assert.False(t, stderrors.Is(c, a))
}

func TestErrorContext_NilSafe(t *testing.T) {
	var ctx ErrorContext
	_, ok := ctx.Get("a")
	assert.False(t, ok)
	ctx = ctx.Set("a", 1)
	_, ok = ctx.GetString("a")
	assert.False(t, ok, "non-string values are not returned by GetString")
}
