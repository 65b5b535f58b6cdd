package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	buf.Pop(2)
	if buf.Available() != 3 || buf.Data()[0] != 3 {
		t.Errorf("after Pop(2): available %d, data %v", buf.Available(), buf.Data())
	}

	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Pop past end should empty the buffer, %d left", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})

	if scratch.CurPosition() != 5 {
		t.Errorf("expected position 5, got %d", scratch.CurPosition())
	}

	scratch.Update(0, 99)
	if scratch.Result()[0] != 99 {
		t.Errorf("Update(0) not applied: %v", scratch.Result())
	}
	scratch.Update(7, 1) // past the write position: ignored
	if scratch.CurPosition() != 5 {
		t.Errorf("Update past end moved the position")
	}

	if since := scratch.DataSince(2); !bytes.Equal(since, []byte{3, 4, 5}) {
		t.Errorf("DataSince(2): expected [3 4 5], got %v", since)
	}
	if scratch.DataSince(9) != nil {
		t.Errorf("DataSince past the end should be nil")
	}

	scratch.Reset()
	if scratch.CurPosition() != 0 || len(scratch.Result()) != 0 {
		t.Errorf("Reset did not clear the buffer")
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax-1))
	if scratch.Overflowed() {
		t.Fatalf("overflow reported before the buffer filled")
	}
	scratch.Output([]byte{1, 2})
	if !scratch.Overflowed() {
		t.Errorf("expected overflow after writing past capacity")
	}
	if scratch.CurPosition() != MessageMax {
		t.Errorf("expected position %d, got %d", MessageMax, scratch.CurPosition())
	}
	scratch.Reset()
	if scratch.Overflowed() {
		t.Errorf("Reset should clear the overflow flag")
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)
	if !fifo.IsEmpty() || fifo.Free() != 9 {
		t.Fatalf("new FIFO: empty=%v free=%d", fifo.IsEmpty(), fifo.Free())
	}

	if n := fifo.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Errorf("expected to write 5 bytes, wrote %d", n)
	}

	readBuf := make([]byte, 3)
	if n := fifo.Read(readBuf); n != 3 || !bytes.Equal(readBuf, []byte{1, 2, 3}) {
		t.Errorf("read %d bytes: %v", n, readBuf)
	}

	fifo.Pop(1)
	if fifo.Available() != 1 {
		t.Errorf("after Pop(1) expected 1 available, got %d", fifo.Available())
	}

	fifo.Reset()
	if n := fifo.Write(make([]byte, 12)); n != 9 {
		t.Errorf("size-10 FIFO holds 9 bytes, wrote %d", n)
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Read(make([]byte, 2))

	if n := fifo.Write([]byte{5, 6}); n != 2 {
		t.Fatalf("expected to write 2 bytes, wrote %d", n)
	}

	// Data must present the wrapped content contiguously, in order.
	if data := fifo.Data(); !bytes.Equal(data, []byte{3, 4, 5, 6}) {
		t.Errorf("Data across wrap: got %v", data)
	}

	fifo.Pop(3)
	if data := fifo.Data(); !bytes.Equal(data, []byte{6}) {
		t.Errorf("after Pop(3): got %v", data)
	}
}
