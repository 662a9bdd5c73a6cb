package audio

import (
	"bytes"
	"testing"
)

func TestRingBuffer_Write(t *testing.T) {
	rb := NewRingBuffer(10)

	written := rb.Write([]byte{1, 2, 3, 4, 5})
	if written != 5 {
		t.Errorf("Expected to write 5 bytes, got %d", written)
	}
	if rb.Available() != 5 {
		t.Errorf("Expected available 5, got %d", rb.Available())
	}

	written = rb.Write([]byte{6, 7, 8})
	if written != 3 {
		t.Errorf("Expected to write 3 bytes, got %d", written)
	}
	if rb.Available() != 8 {
		t.Errorf("Expected available 8, got %d", rb.Available())
	}
	if rb.Space() != 1 {
		t.Errorf("Expected space 1, got %d", rb.Space())
	}
}

func TestRingBuffer_WriteOverflow(t *testing.T) {
	rb := NewRingBuffer(5)

	// Holds size-1 bytes
	written := rb.Write([]byte{1, 2, 3, 4, 5, 6})
	if written != 4 {
		t.Errorf("Expected to write 4 bytes, got %d", written)
	}
	if rb.Space() != 0 {
		t.Errorf("Expected buffer to be full, %d bytes free", rb.Space())
	}
	if rb.Write([]byte{7}) != 0 {
		t.Error("Expected no write into a full buffer")
	}
}

func TestRingBuffer_Read(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write([]byte{1, 2, 3, 4, 5})

	readBuf := make([]byte, 3)
	if read := rb.Read(readBuf); read != 3 {
		t.Errorf("Expected to read 3 bytes, got %d", read)
	}
	if !bytes.Equal(readBuf, []byte{1, 2, 3}) {
		t.Errorf("Read incorrect data: %v", readBuf)
	}
	if rb.Available() != 2 {
		t.Errorf("Expected available 2 after read, got %d", rb.Available())
	}
}

func TestRingBuffer_ReadEmpty(t *testing.T) {
	rb := NewRingBuffer(10)

	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty initially")
	}
	if read := rb.Read(make([]byte, 5)); read != 0 {
		t.Errorf("Expected to read 0 bytes from empty buffer, got %d", read)
	}
}

func TestRingBuffer_WrapAround(t *testing.T) {
	rb := NewRingBuffer(8)

	rb.Write([]byte{1, 2, 3, 4, 5, 6})
	rb.Read(make([]byte, 5))

	// Write crosses the end of the backing slice
	if written := rb.Write([]byte{7, 8, 9, 10, 11, 12}); written != 6 {
		t.Fatalf("Expected to write 6 bytes, got %d", written)
	}

	out := make([]byte, 7)
	if read := rb.Read(out); read != 7 {
		t.Fatalf("Expected to read 7 bytes, got %d", read)
	}
	if !bytes.Equal(out, []byte{6, 7, 8, 9, 10, 11, 12}) {
		t.Errorf("Expected bytes in order across the wrap, got %v", out)
	}
	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty")
	}
}

func TestRingBuffer_ReadPadded(t *testing.T) {
	rb := NewRingBuffer(16)
	rb.Write([]byte{9, 9, 9})

	out := []byte{1, 1, 1, 1, 1, 1}
	if n := rb.ReadPadded(out); n != 3 {
		t.Errorf("Expected 3 queued bytes, got %d", n)
	}
	if !bytes.Equal(out, []byte{9, 9, 9, 0, 0, 0}) {
		t.Errorf("Expected silence padding, got %v", out)
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write([]byte{1, 2, 3})
	rb.Clear()

	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty after clear")
	}
	if rb.Space() != 9 {
		t.Errorf("Expected space 9 after clear, got %d", rb.Space())
	}
}
