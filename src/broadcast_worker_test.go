package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastWorker_FansOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan Snapshot)
	a := make(chan Snapshot, 1)
	b := make(chan Snapshot, 1)
	go broadcastWorker(ctx, in, []chan<- Snapshot{a, b})

	in <- Snapshot{HasReading: true}

	for _, ch := range []chan Snapshot{a, b} {
		select {
		case s := <-ch:
			assert.True(t, s.HasReading)
		case <-time.After(time.Second):
			require.FailNow(t, "snapshot not delivered")
		}
	}
}

func TestBroadcastWorker_DropsForFullConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan Snapshot)
	slow := make(chan Snapshot) // never read
	fast := make(chan Snapshot, 2)
	go broadcastWorker(ctx, in, []chan<- Snapshot{slow, fast})

	in <- Snapshot{}
	in <- Snapshot{}

	assert.Eventually(t, func() bool { return len(fast) == 2 }, time.Second, 5*time.Millisecond)
}

func TestSnapshotEmitter_NeverBlocks(t *testing.T) {
	out := make(chan Snapshot, 1)
	emit := snapshotEmitter(out)

	emit(Snapshot{HasReading: true})
	emit(Snapshot{})

	s := <-out
	assert.True(t, s.HasReading)
}
