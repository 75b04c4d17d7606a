package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEmitsInOrder(t *testing.T) {
	ev := NewEvent[string]("listen")
	var got []string
	ev.On(func(_ context.Context, v string) error { got = append(got, "a"+v); return nil })
	ev.On(func(_ context.Context, v string) error { got = append(got, "b"+v); return nil })

	require.NoError(t, ev.Emit(context.Background(), "1"))
	assert.Equal(t, []string{"a1", "b1"}, got)
	assert.Equal(t, 2, ev.Len())
	assert.Equal(t, "listen", ev.Name())
}

func TestEventStopsAtFirstError(t *testing.T) {
	ev := NewEvent[int]("close")
	boom := errors.New("boom")
	calls := 0
	ev.On(func(context.Context, int) error { calls++; return boom })
	ev.On(func(context.Context, int) error { calls++; return nil })

	err := ev.Emit(context.Background(), 0)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "hook close")
	assert.Equal(t, 1, calls)
}

func TestEventHonoursCancelledContext(t *testing.T) {
	ev := NewEvent[int]("done")
	ev.On(func(context.Context, int) error { t.Fatal("handler should not run"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ev.Emit(ctx, 0), context.Canceled)
}

func TestEmitAllRunsEveryHandler(t *testing.T) {
	ev := NewEvent[int]("close")
	first, second := errors.New("listener stuck"), errors.New("watcher stuck")
	calls := 0
	ev.On(func(context.Context, int) error { calls++; return first })
	ev.On(func(context.Context, int) error { calls++; return second })
	ev.On(func(context.Context, int) error { calls++; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ev.EmitAll(ctx, 0)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Equal(t, 3, calls)

	assert.NoError(t, NewEvent[int]("noop").EmitAll(ctx, 0))
}

func TestEventWithoutHandlers(t *testing.T) {
	assert.NoError(t, NewEvent[struct{}]("noop").Emit(context.Background(), struct{}{}))
}

func TestEventRegistrationDuringEmit(t *testing.T) {
	ev := NewEvent[int]("grow")
	late := 0
	ev.On(func(context.Context, int) error {
		ev.On(func(context.Context, int) error { late++; return nil })
		return nil
	})

	require.NoError(t, ev.Emit(context.Background(), 0))
	assert.Zero(t, late)
	require.NoError(t, ev.Emit(context.Background(), 0))
	assert.Equal(t, 1, late)
}
