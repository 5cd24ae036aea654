package saga_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrip/internal/provisioning/saga"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestRunSuccessSkipsCompensations(t *testing.T) {
	rec := &recorder{}
	c := saga.NewCoordinator()

	err := c.Run(context.Background(), "provision", func(ctx context.Context, ex *saga.Execution) error {
		_, err := saga.Step(ctx, ex, "first", func(ctx context.Context) (string, saga.CompensationFunc, error) {
			return "a", func(ctx context.Context) error {
				rec.add("undo first")
				return nil
			}, nil
		})
		require.NoError(t, err)

		return saga.Do(ctx, ex, "second", func(ctx context.Context) (saga.CompensationFunc, error) {
			return func(ctx context.Context) error {
				rec.add("undo second")
				return nil
			}, nil
		})
	})

	require.NoError(t, err)
	assert.Empty(t, rec.list(), "compensations must not run on success")
}

func TestRunUnwindsInReverseOrder(t *testing.T) {
	rec := &recorder{}
	c := saga.NewCoordinator()
	boom := errors.New("third step failed")

	err := c.Run(context.Background(), "provision", func(ctx context.Context, ex *saga.Execution) error {
		for _, name := range []string{"first", "second"} {
			name := name
			if err := saga.Do(ctx, ex, name, func(ctx context.Context) (saga.CompensationFunc, error) {
				return func(ctx context.Context) error {
					rec.add("undo " + name)
					return nil
				}, nil
			}); err != nil {
				return err
			}
		}
		return saga.Do(ctx, ex, "third", func(ctx context.Context) (saga.CompensationFunc, error) {
			return nil, boom
		})
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"undo second", "undo first"}, rec.list())
}

func TestRunReturnsOriginalErrorWhenCompensationFails(t *testing.T) {
	rec := &recorder{}
	c := saga.NewCoordinator()
	stepErr := errors.New("step failed")
	compErr := errors.New("compensation failed")

	err := c.Run(context.Background(), "provision", func(ctx context.Context, ex *saga.Execution) error {
		if err := saga.Do(ctx, ex, "first", func(ctx context.Context) (saga.CompensationFunc, error) {
			return func(ctx context.Context) error {
				rec.add("undo first")
				return nil
			}, nil
		}); err != nil {
			return err
		}
		if err := saga.Do(ctx, ex, "second", func(ctx context.Context) (saga.CompensationFunc, error) {
			return func(ctx context.Context) error {
				rec.add("undo second")
				return compErr
			}, nil
		}); err != nil {
			return err
		}
		return saga.Do(ctx, ex, "third", func(ctx context.Context) (saga.CompensationFunc, error) {
			return nil, stepErr
		})
	})

	require.ErrorIs(t, err, stepErr)
	assert.NotErrorIs(t, err, compErr, "compensation failure must not mask the step error")
	assert.Equal(t, []string{"undo second", "undo first"}, rec.list(),
		"a failed compensation must not stop the remaining unwind")
}

func TestStepWithoutCompensationAddsNothing(t *testing.T) {
	rec := &recorder{}
	c := saga.NewCoordinator()
	boom := errors.New("boom")

	err := c.Run(context.Background(), "provision", func(ctx context.Context, ex *saga.Execution) error {
		// Read-only step, no compensation.
		if _, err := saga.Step(ctx, ex, "lookup", func(ctx context.Context) (int, saga.CompensationFunc, error) {
			return 42, nil, nil
		}); err != nil {
			return err
		}
		if err := saga.Do(ctx, ex, "write", func(ctx context.Context) (saga.CompensationFunc, error) {
			return func(ctx context.Context) error {
				rec.add("undo write")
				return nil
			}, nil
		}); err != nil {
			return err
		}
		return saga.Do(ctx, ex, "fail", func(ctx context.Context) (saga.CompensationFunc, error) {
			return nil, boom
		})
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"undo write"}, rec.list())
}

func TestCompensationsRunAfterContextCancellation(t *testing.T) {
	rec := &recorder{}
	c := saga.NewCoordinator()

	ctx, cancel := context.WithCancel(context.Background())

	err := c.Run(ctx, "provision", func(ctx context.Context, ex *saga.Execution) error {
		if err := saga.Do(ctx, ex, "write", func(ctx context.Context) (saga.CompensationFunc, error) {
			return func(ctx context.Context) error {
				if ctx.Err() != nil {
					rec.add("undo saw dead context")
					return ctx.Err()
				}
				rec.add("undo write")
				return nil
			}, nil
		}); err != nil {
			return err
		}
		// Request gives up mid-saga. The unwind must still run.
		cancel()
		return ctx.Err()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"undo write"}, rec.list(),
		"compensations run on a context detached from the request's cancellation")
}

func TestStepTimeoutAborts(t *testing.T) {
	c := saga.NewCoordinator(saga.WithCallTimeout(20 * time.Millisecond))

	err := c.Run(context.Background(), "provision", func(ctx context.Context, ex *saga.Execution) error {
		return saga.Do(ctx, ex, "slow", func(ctx context.Context) (saga.CompensationFunc, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return nil, nil
			}
		})
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStepReturnsValue(t *testing.T) {
	c := saga.NewCoordinator()

	var got string
	err := c.Run(context.Background(), "provision", func(ctx context.Context, ex *saga.Execution) error {
		out, err := saga.Step(ctx, ex, "create", func(ctx context.Context) (string, saga.CompensationFunc, error) {
			return "identity-123", nil, nil
		})
		if err != nil {
			return err
		}
		got = out
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "identity-123", got)
}
