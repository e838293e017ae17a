package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(name string) Func {
	return Func{
		TypeName: name,
		Summary:  "echoes the title",
		Fn: func(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
			return models.NewTaskResult("echo", task.Title), nil
		},
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry(logging.NopLogger())

	require.NoError(t, r.Register("b.echo", echo("Echo B")))
	require.NoError(t, r.Register("a.echo", echo("Echo A")))

	impl, ok := r.Lookup("a.echo")
	require.True(t, ok)
	assert.Equal(t, "Echo A", impl.Name())

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	types := r.Types()
	require.Len(t, types, 2)
	assert.Equal(t, "a.echo", types[0].Key)
	assert.Equal(t, "echoes the title", types[0].Description)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry(logging.NopLogger())
	require.NoError(t, r.Register("echo", echo("Echo")))

	err := r.Register("echo", echo("Other"))
	assert.True(t, errors.Is(err, ErrTaskTypeExists))
	assert.Error(t, r.Register("", echo("Empty")))
}

func TestWithTimingPassesResult(t *testing.T) {
	wrapped := WithTiming(echo("Echo"), logging.NopLogger())
	assert.Same(t, wrapped, WithTiming(wrapped, logging.NopLogger()))

	result, err := wrapped.Run(context.Background(), models.NewTask("hello", "", nil, 1))
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
}

func TestWithTimingRecoversPanics(t *testing.T) {
	boom := Func{TypeName: "boom", Fn: func(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
		panic("kaboom")
	}}

	result, err := WithTiming(boom, logging.NopLogger()).Run(context.Background(), models.NewTask("t", "", nil, 1))
	assert.Nil(t, result)

	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestWithTimingRejectsNilResult(t *testing.T) {
	empty := Func{TypeName: "empty", Fn: func(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
		return nil, nil
	}}

	_, err := WithTiming(empty, logging.NopLogger()).Run(context.Background(), models.NewTask("t", "", nil, 1))
	assert.Error(t, err)
}
