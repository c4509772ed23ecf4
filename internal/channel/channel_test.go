package channel

import (
	"testing"
	"time"

	"github.com/mdufaud/sihdgo/internal/clock"
	"github.com/mdufaud/sihdgo/internal/typedarray"
)

type countObserver struct {
	count int
	last  *Channel
}

func (o *countObserver) Handle(c *Channel) {
	o.count++
	o.last = c
}

func TestWriteNotifiesObservers(t *testing.T) {
	c, err := New("temperature", typedarray.KindF32, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	obs := &countObserver{}
	c.AddObserver(obs)

	if ok := WriteScalar(c, 0, float32(21.5)); !ok {
		t.Fatalf("WriteScalar failed")
	}
	if obs.count != 1 {
		t.Fatalf("count = %d, want 1", obs.count)
	}
	got, err := ReadScalar[float32](c, 0)
	if err != nil || got != 21.5 {
		t.Fatalf("ReadScalar = %v, %v, want 21.5", got, err)
	}
}

func TestWriteOnChangeCoalesces(t *testing.T) {
	c, _ := New("v", typedarray.KindI32, 1)
	obs := &countObserver{}
	c.AddObserver(obs)

	WriteScalar(c, 0, int32(5))
	WriteScalar(c, 0, int32(5))
	WriteScalar(c, 0, int32(6))

	if obs.count != 2 {
		t.Fatalf("count = %d, want 2 (repeat write coalesced)", obs.count)
	}
}

func TestWriteOnChangeDisabledNotifiesEveryWrite(t *testing.T) {
	c, _ := New("v", typedarray.KindI32, 1)
	c.SetWriteOnChange(false)
	obs := &countObserver{}
	c.AddObserver(obs)

	WriteScalar(c, 0, int32(5))
	WriteScalar(c, 0, int32(5))

	if obs.count != 2 {
		t.Fatalf("count = %d, want 2", obs.count)
	}
}

func TestWriteOverflowFails(t *testing.T) {
	c, _ := New("v", typedarray.KindU8, 2)
	if ok := c.Write([]byte{1, 2, 3}, 0); ok {
		t.Fatalf("overflowing write should fail")
	}
}

func TestWriteWhileNotifyingIsRejected(t *testing.T) {
	c, _ := New("v", typedarray.KindI32, 1)
	reentrant := &selfWriter{c: c}
	c.AddObserver(reentrant)

	if ok := WriteScalar(c, 0, int32(1)); !ok {
		t.Fatalf("initial write should succeed")
	}
	if reentrant.nestedOk {
		t.Fatalf("nested write during notify should have been rejected")
	}
}

type selfWriter struct {
	c        *Channel
	nestedOk bool
}

func (s *selfWriter) Handle(c *Channel) {
	s.nestedOk = WriteScalar(c, 0, int32(2))
}

func TestRemoveObserverDuringNotifyIsDeferred(t *testing.T) {
	c, _ := New("v", typedarray.KindI32, 1)
	obs := &countObserver{}
	self := &selfRemover{c: c, obs: obs}
	c.AddObserver(self)
	c.AddObserver(obs)

	WriteScalar(c, 0, int32(1))
	if obs.count != 1 {
		t.Fatalf("observer should still fire during the notify that triggered removal")
	}
	WriteScalar(c, 0, int32(2))
	if obs.count != 1 {
		t.Fatalf("observer should be gone by the second notify, count = %d", obs.count)
	}
}

type selfRemover struct {
	c   *Channel
	obs Observer
}

func (s *selfRemover) Handle(c *Channel) {
	c.RemoveObserver(s.obs)
}

func TestTimestampAdvancesOnWrite(t *testing.T) {
	mock := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c, _ := New("v", typedarray.KindI32, 1)
	c.SetClock(mock)

	WriteScalar(c, 0, int32(1))
	first := c.Timestamp()

	mock.Advance(time.Second)
	WriteScalar(c, 0, int32(2))
	second := c.Timestamp()

	if !second.After(first) {
		t.Fatalf("timestamp should advance: %v -> %v", first, second)
	}
}
