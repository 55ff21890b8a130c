package cancel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_Flag(t *testing.T) {
	var b Bridge
	assert.NoError(t, b.Progress())
	assert.False(t, b.Pending())

	b.Interrupt()
	assert.True(t, b.Pending())
	assert.ErrorIs(t, b.Progress(), ErrAborted)

	b.Clear()
	assert.NoError(t, b.Progress())
}

func TestBridge_RedeliverForwardsAndRestores(t *testing.T) {
	var b Bridge
	var outer, inner int

	restoreOuter := b.Install(func() { outer++ })
	restoreInner := b.Install(func() { inner++ })

	b.Redeliver()
	assert.Equal(t, 0, outer)
	assert.Equal(t, 1, inner)

	restoreInner()
	b.Redeliver()
	assert.Equal(t, 1, outer)

	restoreOuter()
	b.Redeliver()
	assert.Equal(t, 1, outer)
	assert.Equal(t, 1, inner)
}

func TestBridge_GuardCancelsOnInterrupt(t *testing.T) {
	var b Bridge
	ctx, stop := b.Guard(context.Background(), 5*time.Millisecond)
	defer stop()

	b.Interrupt()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("guard context was not cancelled")
	}
	assert.True(t, Aborted(ctx))
}

func TestBridge_GuardParentCancelRaisesFlag(t *testing.T) {
	var b Bridge
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, stop := b.Guard(parent, time.Hour)
	defer stop()

	cancelParent()

	require.Eventually(t, b.Pending, 2*time.Second, 5*time.Millisecond)
	<-ctx.Done()
}

func TestBridge_GuardStopIsNotAnAbort(t *testing.T) {
	var b Bridge
	ctx, stop := b.Guard(context.Background(), time.Millisecond)
	stop()
	stop()

	<-ctx.Done()
	assert.False(t, Aborted(ctx))
	assert.False(t, b.Pending())
}
