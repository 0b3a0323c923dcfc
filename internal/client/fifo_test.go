package client

import "testing"

func TestFIFOWriteReadRoundTrip(t *testing.T) {
	f := NewFIFO(16)
	n := f.Write([]byte{1, 2, 3, 4})
	if n != 4 {
		t.Fatalf("expected 4 bytes written, got %d", n)
	}
	out := make([]byte, 4)
	if got := f.Read(out); got != 4 {
		t.Fatalf("expected 4 bytes read, got %d", got)
	}
	if out[0] != 1 || out[3] != 4 {
		t.Fatalf("unexpected data: %v", out)
	}
}

func TestFIFOTruncatesWhenFull(t *testing.T) {
	f := NewFIFO(4)
	n := f.Write([]byte{1, 2, 3, 4, 5, 6})
	if n != 4 {
		t.Fatalf("expected write truncated to capacity 4, got %d", n)
	}
	if f.Free() != 0 {
		t.Fatalf("expected FIFO full, free=%d", f.Free())
	}
}

func TestFIFOResetEmpties(t *testing.T) {
	f := NewFIFO(8)
	f.Write([]byte{1, 2, 3})
	f.Reset()
	if f.Len() != 0 {
		t.Fatalf("expected empty FIFO after reset, got len %d", f.Len())
	}
	if f.Free() != 8 {
		t.Fatalf("expected full free space after reset, got %d", f.Free())
	}
}

func TestFIFOFillRatio(t *testing.T) {
	f := NewFIFO(10)
	f.Write([]byte{1, 2, 3})
	bytes, capacity := f.FillRatio()
	if bytes != 3 || capacity != 10 {
		t.Fatalf("expected (3, 10), got (%d, %d)", bytes, capacity)
	}
}

func TestFIFOWrapAround(t *testing.T) {
	f := NewFIFO(4)
	f.Write([]byte{1, 2, 3})
	out := make([]byte, 2)
	f.Read(out) // drains 1,2 -> r=2
	f.Write([]byte{4, 5})  // wraps: w was 3, writes at 3 then 0
	rest := make([]byte, 3)
	got := f.Read(rest)
	if got != 3 {
		t.Fatalf("expected 3 bytes remaining after wrap, got %d", got)
	}
	if rest[0] != 3 || rest[1] != 4 || rest[2] != 5 {
		t.Fatalf("expected [3 4 5] after wraparound, got %v", rest)
	}
}
