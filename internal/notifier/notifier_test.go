package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_SubscribeCancel(t *testing.T) {
	n := New()

	ch, cancel := n.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Len())

	cancel()
	assert.Equal(t, 0, n.Len())

	_, ok := <-ch
	assert.False(t, ok, "channel is closed after cancel")

	// second cancel is a no-op
	cancel()
}

func TestNotifier_Broadcast(t *testing.T) {
	n := New()
	ch1, cancel1 := n.Subscribe()
	ch2, cancel2 := n.Subscribe()
	defer cancel1()
	defer cancel2()

	n.Broadcast()

	for i, ch := range []<-chan struct{}{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d did not receive broadcast", i+1)
		}
	}
}

func TestNotifier_BroadcastCoalesces(t *testing.T) {
	n := New()
	ch, cancel := n.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		n.Broadcast()
		n.Broadcast()
		n.Broadcast()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Broadcast blocked on a full channel")
	}

	<-ch
	select {
	case <-ch:
		t.Error("pings were not coalesced")
	default:
	}
}

func TestNotifier_Close(t *testing.T) {
	n := New()
	ch, cancel := n.Subscribe()

	n.Close()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, n.Len())

	cancel()
	n.Broadcast()
	n.Close()

	late, _ := n.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after Close yields a closed channel")
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, cancel := n.Subscribe()
			n.Broadcast()
			cancel()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, n.Len())
}
