package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryRunsTask(t *testing.T) {
	s, err := New(nil, time.Second)
	require.NoError(t, err)

	var runs int32
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Every("digest", 20*time.Millisecond, func(ctx context.Context) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			ran <- struct{}{}
		}
		return errors.New("keeps schedule")
	}))
	assert.Equal(t, 1, s.Jobs())

	s.Start()
	defer func() { _ = s.Shutdown() }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task never ran")
	}
}

func TestEveryRejectsNonPositiveInterval(t *testing.T) {
	s, err := New(nil, 0)
	require.NoError(t, err)
	assert.Error(t, s.Every("bad", 0, func(context.Context) error { return nil }))
}
