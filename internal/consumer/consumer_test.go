// internal/consumer/consumer_test.go
package consumer

import (
	"testing"

	"github.com/iu3qez/remotecwkeyer/internal/fault"
	"github.com/iu3qez/remotecwkeyer/internal/sample"
	"github.com/iu3qez/remotecwkeyer/internal/stream"
)

func keySample(down bool) sample.Sample {
	return sample.Sample{KeyDown: down}
}

func TestHardRT_OKAndNoData(t *testing.T) {
	s := stream.New(16)
	var f fault.State
	h := NewHardRT(s, &f, 8)

	var out sample.Sample
	if st := h.Tick(&out); st != NoData {
		t.Fatalf("empty stream: %v", st)
	}

	s.PushRaw(keySample(true))
	if st := h.Tick(&out); st != OK {
		t.Fatalf("expected OK, got %v", st)
	}
	if !out.KeyDown {
		t.Fatalf("wrong sample: %+v", out)
	}

	if st := h.Tick(&out); st != NoData {
		t.Fatalf("caught up: %v", st)
	}
}

func TestHardRT_LatencyFault(t *testing.T) {
	s := stream.New(16)
	var f fault.State
	h := NewHardRT(s, &f, 3)

	for i := 0; i < 5; i++ {
		s.PushRaw(keySample(i%2 == 0))
	}

	var out sample.Sample
	if st := h.Tick(&out); st != Fault {
		t.Fatalf("lag 5 > max 3: %v", st)
	}
	if f.Code() != fault.LatencyExceeded {
		t.Fatalf("code = %v", f.Code())
	}
	if f.Data() != 5 {
		t.Fatalf("data = %d, want observed lag 5", f.Data())
	}
}

func TestHardRT_OverrunFault(t *testing.T) {
	s := stream.New(8)
	var f fault.State
	h := NewHardRT(s, &f, 100)

	for i := 0; i < 12; i++ {
		s.PushRaw(keySample(i%2 == 0))
	}

	var out sample.Sample
	if st := h.Tick(&out); st != Fault {
		t.Fatalf("expected overrun fault")
	}
	if f.Code() != fault.ConsumerOverrun {
		t.Fatalf("code = %v", f.Code())
	}
}

func TestHardRT_FaultIsSticky(t *testing.T) {
	s := stream.New(16)
	var f fault.State
	h := NewHardRT(s, &f, 1)

	s.PushRaw(keySample(true))
	s.PushRaw(keySample(false))

	var out sample.Sample
	if st := h.Tick(&out); st != Fault {
		t.Fatalf("expected fault")
	}
	count := f.Count()

	// Every subsequent tick returns Fault without touching the count.
	for i := 0; i < 5; i++ {
		if st := h.Tick(&out); st != Fault {
			t.Fatalf("fault must be sticky, got %v", st)
		}
	}
	if f.Count() != count {
		t.Fatalf("sticky fault must not bump count: %d -> %d", count, f.Count())
	}
}

func TestHardRT_ClearAndResync(t *testing.T) {
	s := stream.New(16)
	var f fault.State
	h := NewHardRT(s, &f, 1)

	for i := 0; i < 4; i++ {
		s.PushRaw(keySample(i%2 == 0))
	}

	var out sample.Sample
	if st := h.Tick(&out); st != Fault {
		t.Fatalf("expected fault")
	}

	// Operator recovery: clear, then resync.
	f.Clear()
	h.Resync()

	if st := h.Tick(&out); st != NoData {
		t.Fatalf("after resync at latest: %v", st)
	}

	s.PushRaw(keySample(true))
	if st := h.Tick(&out); st != OK {
		t.Fatalf("recovered consumer must read: %v", st)
	}
}

func TestHardRT_FaultFromOtherConsumerIsVisible(t *testing.T) {
	s := stream.New(16)
	var f fault.State
	h := NewHardRT(s, &f, 8)

	f.Set(fault.Hardware, 0)

	s.PushRaw(keySample(true))
	var out sample.Sample
	if st := h.Tick(&out); st != Fault {
		t.Fatalf("active fault from any source must stop the consumer")
	}
}

func TestBestEffort_NoDataAndRead(t *testing.T) {
	s := stream.New(16)
	b := NewBestEffort(s, 0, DefaultSkipMargin)

	var out sample.Sample
	if b.Tick(&out) {
		t.Fatalf("empty stream must report no data")
	}

	s.PushRaw(keySample(true))
	if !b.Tick(&out) || !out.KeyDown {
		t.Fatalf("expected the pushed sample")
	}
	if b.Dropped() != 0 {
		t.Fatalf("nothing dropped yet")
	}
}

func TestBestEffort_SkipsOnOverrun(t *testing.T) {
	s := stream.New(8)
	b := NewBestEffort(s, 0, DefaultSkipMargin)

	for i := 0; i < 20; i++ {
		s.PushRaw(sample.Sample{Payload16: uint16(i)})
	}

	var out sample.Sample
	if !b.Tick(&out) {
		t.Fatalf("skip must land on readable data")
	}
	// Skip target is write position minus the margin.
	if out.Payload16 != 18 {
		t.Fatalf("expected sample 18 after skip, got %d", out.Payload16)
	}
	if b.Dropped() != 18 {
		t.Fatalf("dropped = %d, want 18", b.Dropped())
	}
}

func TestBestEffort_SkipThreshold(t *testing.T) {
	s := stream.New(64)
	b := NewBestEffort(s, 5, 2)

	for i := 0; i < 10; i++ {
		s.PushRaw(sample.Sample{Payload16: uint16(i)})
	}

	var out sample.Sample
	if !b.Tick(&out) {
		t.Fatalf("expected data after threshold skip")
	}
	if out.Payload16 != 8 {
		t.Fatalf("expected sample 8, got %d", out.Payload16)
	}
	if b.Dropped() != 8 {
		t.Fatalf("dropped = %d, want 8", b.Dropped())
	}

	// Under the threshold nothing is skipped.
	if !b.Tick(&out) || out.Payload16 != 9 {
		t.Fatalf("expected sample 9, got %+v", out)
	}
}

func TestBestEffort_NeverFaults(t *testing.T) {
	s := stream.New(8)
	b := NewBestEffort(s, 4, DefaultSkipMargin)

	var out sample.Sample
	prevDropped := uint64(0)
	for i := 0; i < 1000; i++ {
		s.PushRaw(sample.Sample{Payload16: uint16(i)})
		if i%97 == 0 {
			b.Tick(&out)
			if b.Dropped() < prevDropped {
				t.Fatalf("dropped must be monotonic")
			}
			prevDropped = b.Dropped()
		}
	}
}

func TestBestEffort_ZeroThresholdDisablesAutoSkip(t *testing.T) {
	s := stream.New(64)
	b := NewBestEffort(s, 0, DefaultSkipMargin)

	for i := 0; i < 30; i++ {
		s.PushRaw(sample.Sample{Payload16: uint16(i)})
	}

	// Lag 30 with no overrun (capacity 64): reads proceed in order.
	var out sample.Sample
	for i := 0; i < 30; i++ {
		if !b.Tick(&out) || out.Payload16 != uint16(i) {
			t.Fatalf("sample %d: got %+v", i, out)
		}
	}
	if b.Dropped() != 0 {
		t.Fatalf("no skip expected, dropped = %d", b.Dropped())
	}
}

func TestStatusString(t *testing.T) {
	if OK.String() != "OK" || NoData.String() != "NO_DATA" || Fault.String() != "FAULT" {
		t.Fatalf("status strings wrong")
	}
}
