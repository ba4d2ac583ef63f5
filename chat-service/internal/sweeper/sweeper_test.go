package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpirer) Sweep(context.Context) (int64, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(&countingExpirer{}, "every now and then")
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	exp := &countingExpirer{}
	s, err := New(exp, "@every 1h")
	require.NoError(t, err)

	s.RunOnce()
	exp.err = errors.New("db down")
	s.RunOnce()

	assert.Equal(t, int32(2), exp.calls.Load())
}

func TestStartRunsOnSchedule(t *testing.T) {
	exp := &countingExpirer{}
	s, err := New(exp, "@every 1s")
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return exp.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestAddJob(t *testing.T) {
	s, err := New(&countingExpirer{}, "@every 1h")
	require.NoError(t, err)

	assert.Error(t, s.AddJob("bad", "whenever", func() {}))

	var runs atomic.Int32
	require.NoError(t, s.AddJob("count", "@every 1s", func() { runs.Add(1) }))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
