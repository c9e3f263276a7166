package frame

import (
	"bytes"
	"testing"
)

func TestRoundTripPrimitives(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteByte(7)
	w.WriteUint32(123456)
	w.WriteUint64(9876543210)
	w.WriteInt64(-42)
	w.WriteFloat64(3.5)
	w.WriteString("héllo")
	w.WriteBytes([]byte{1, 2, 3})
	if err := w.Err(); err != nil {
		t.Fatal("unexpected write error:", err)
	}

	r := NewReader(&buf)
	if v := r.ReadByte(); v != 7 {
		t.Fatalf("byte round-trip mismatch: got %d", v)
	}
	if v := r.ReadUint32(); v != 123456 {
		t.Fatalf("uint32 round-trip mismatch: got %d", v)
	}
	if v := r.ReadUint64(); v != 9876543210 {
		t.Fatalf("uint64 round-trip mismatch: got %d", v)
	}
	if v := r.ReadInt64(); v != -42 {
		t.Fatalf("int64 round-trip mismatch: got %d", v)
	}
	if v := r.ReadFloat64(); v != 3.5 {
		t.Fatalf("float64 round-trip mismatch: got %v", v)
	}
	if v := r.ReadString(); v != "héllo" {
		t.Fatalf("string round-trip mismatch: got %q", v)
	}
	if v := r.ReadBytes(3); !bytes.Equal(v, []byte{1, 2, 3}) {
		t.Fatalf("raw bytes round-trip mismatch: got %v", v)
	}
	if err := r.Err(); err != nil {
		t.Fatal("unexpected read error:", err)
	}
}

func TestSignatureMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteSignature("smolimg ")

	r := NewReader(&buf)
	if err := r.ReadSignature("smoldiff"); err == nil {
		t.Fatal("expected signature mismatch error, got nil")
	}
}

func TestTruncatedRead(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2}))
	_ = r.ReadUint64()
	if r.Err() != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", r.Err())
	}
}
