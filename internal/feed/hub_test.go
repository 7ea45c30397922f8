package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"execdash/internal/logger"
	"execdash/internal/snapshot"
)

func recv(t *testing.T, ch <-chan snapshot.Snapshot, within time.Duration) snapshot.Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(within):
		t.Fatalf("no notification within %s", within)
		return snapshot.Snapshot{}
	}
}

func assertSilent(t *testing.T, ch <-chan snapshot.Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected notification: %+v", s)
	case <-time.After(within):
	}
}

func TestHub_DeliversToEverySubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(logger.Nop())
	defer h.Close()

	a := make(chan snapshot.Snapshot, 1)
	b := make(chan snapshot.Snapshot, 1)
	unsubA := h.Subscribe(func(s snapshot.Snapshot) { a <- s })
	unsubB := h.Subscribe(func(s snapshot.Snapshot) { b <- s })
	defer unsubA()
	defer unsubB()
	require.Equal(t, 2, h.Len())

	s := snapshot.Default()
	s.PeopleServed = 7777777
	require.NoError(t, h.Publish(context.Background(), s))

	assert.Equal(t, int64(7777777), recv(t, a, time.Second).PeopleServed)
	assert.Equal(t, int64(7777777), recv(t, b, time.Second).PeopleServed)
}

func TestHub_SubscribersGetIndependentCopies(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(logger.Nop())
	defer h.Close()

	a := make(chan snapshot.Snapshot, 1)
	b := make(chan snapshot.Snapshot, 1)
	defer h.Subscribe(func(s snapshot.Snapshot) {
		s.ChartDeltas["revenueChange"] = 99
		a <- s
	})()
	defer h.Subscribe(func(s snapshot.Snapshot) { b <- s })()

	h.Broadcast(snapshot.Default())

	recv(t, a, time.Second)
	got := recv(t, b, time.Second)
	assert.Zero(t, got.ChartDeltas["revenueChange"])
}

func TestHub_NoDeliveryAfterUnsubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(logger.Nop())
	defer h.Close()

	ch := make(chan snapshot.Snapshot, 4)
	unsub := h.Subscribe(func(s snapshot.Snapshot) { ch <- s })
	unsub()
	unsub()

	assert.Equal(t, 0, h.Len())
	h.Broadcast(snapshot.Default())
	assertSilent(t, ch, 50*time.Millisecond)
}

func TestHub_ResubscribeDoesNotReplay(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(logger.Nop())
	defer h.Close()

	first := make(chan snapshot.Snapshot, 4)
	unsub := h.Subscribe(func(s snapshot.Snapshot) { first <- s })

	s := snapshot.Default()
	s.Revenue = 1
	h.Broadcast(s)
	recv(t, first, time.Second)
	unsub()

	second := make(chan snapshot.Snapshot, 4)
	defer h.Subscribe(func(s snapshot.Snapshot) { second <- s })()
	assertSilent(t, second, 50*time.Millisecond)

	s.Revenue = 2
	h.Broadcast(s)
	assert.Equal(t, float64(2), recv(t, second, time.Second).Revenue)
	assertSilent(t, second, 50*time.Millisecond)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(logger.Nop(), WithBuffer(1))
	defer h.Close()

	release := make(chan struct{})
	var mu sync.Mutex
	var seen []float64
	unsub := h.Subscribe(func(s snapshot.Snapshot) {
		<-release
		mu.Lock()
		seen = append(seen, s.Revenue)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 20; i++ {
			s := snapshot.Default()
			s.Revenue = float64(i)
			h.Broadcast(s)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, time.Second, 5*time.Millisecond)
	unsub()

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, len(seen), 20)
}

func TestHub_CloseRejectsNewSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(nil)
	ch := make(chan snapshot.Snapshot, 1)
	h.Subscribe(func(s snapshot.Snapshot) { ch <- s })
	h.Close()
	assert.Equal(t, 0, h.Len())

	unsub := h.Subscribe(func(s snapshot.Snapshot) { ch <- s })
	unsub()
	h.Broadcast(snapshot.Default())
	assertSilent(t, ch, 50*time.Millisecond)
}

func TestDecodeChange(t *testing.T) {
	s, err := decodeChange([]byte(`{"table":"executive_metrics","event":"UPDATE","new":{"people_served":12,"chart_deltas":{"extra":1}}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(12), s.PeopleServed)
	assert.Equal(t, float64(1), s.ChartDeltas["extra"])
	assert.Contains(t, s.GlobalIndicators, "egyptInflation")

	_, err = decodeChange([]byte(`{"table":"users","new":{}}`))
	assert.Error(t, err)

	_, err = decodeChange([]byte(`not json`))
	assert.Error(t, err)
}

func TestRedisBus_ForwardsIntoHub(t *testing.T) {
	mr := miniredis.RunT(t)

	// Two buses on one server stand in for two replicas.
	writer, err := NewRedisBus(logger.Nop(), mr.Addr(), "execdash_test")
	require.NoError(t, err)
	defer writer.Close()
	reader, err := NewRedisBus(logger.Nop(), mr.Addr(), "execdash_test")
	require.NoError(t, err)
	defer reader.Close()

	h := NewHub(logger.Nop())
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, reader.StartForwarder(ctx, h.Broadcast))

	ch := make(chan snapshot.Snapshot, 1)
	defer h.Subscribe(func(s snapshot.Snapshot) { ch <- s })()

	s := snapshot.Default()
	s.PeopleServed = 7777777
	require.NoError(t, writer.Publish(ctx, s))
	assert.Equal(t, int64(7777777), recv(t, ch, 2*time.Second).PeopleServed)
}

func TestNewRedisBus_UnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisBus(logger.Nop(), addr, "")
	assert.Error(t, err)
}

func TestNewRedisBus_Validation(t *testing.T) {
	_, err := NewRedisBus(nil, "localhost:6379", "")
	assert.Error(t, err)
	_, err = NewRedisBus(logger.Nop(), "  ", "")
	assert.Error(t, err)
}
