// Package frame implements the typed, length-prefixed binary encoding shared
// by smolsync's on-disk image, diff, and hash store formats.
//
// All multi-byte integers and floats are little-endian and fixed width:
// a "B" value is a uint8, an "I" value is a uint32, an "N" value is a
// uint64, a "q" value is an int64, and a "d" value is an IEEE-754 double.
// Strings are encoded as a uint32 byte length followed by raw UTF-8 bytes.
package frame

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// SignatureLength is the fixed size, in bytes, of every smolsync file
// signature.
const SignatureLength = 8

// ErrTruncated is returned when a read encounters fewer bytes than the
// format requires, indicating a corrupt or incomplete file.
var ErrTruncated = errors.New("truncated smolsync file")

// Writer encodes values using smolsync's framed binary encoding.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps an io.Writer for framed encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered by any Write* call, if any. Once
// an error occurs, all further writes on this Writer are no-ops.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

// WriteSignature writes a fixed 8-byte file signature, padding or
// truncating it to SignatureLength if necessary (callers should always pass
// an 8-byte signature).
func (w *Writer) WriteSignature(signature string) {
	buf := make([]byte, SignatureLength)
	copy(buf, signature)
	w.write(buf)
}

// WriteByte writes a single uint8 ("B").
func (w *Writer) WriteByte(v uint8) {
	w.write([]byte{v})
}

// WriteUint32 writes a uint32 ("I").
func (w *Writer) WriteUint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.write(buf[:])
}

// WriteUint64 writes a uint64 ("N").
func (w *Writer) WriteUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.write(buf[:])
}

// WriteInt64 writes an int64 ("q").
func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

// WriteFloat64 writes an IEEE-754 double ("d").
func (w *Writer) WriteFloat64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	w.write(buf[:])
}

// WriteString writes a uint32-length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s)))
	w.write([]byte(s))
}

// WriteBytes writes a raw, fixed-size byte span with no length prefix. The
// reader must know the span's length in advance (used for hash digests).
func (w *Writer) WriteBytes(b []byte) {
	w.write(b)
}

// Reader decodes values using smolsync's framed binary encoding.
type Reader struct {
	r   *bufio.Reader
	err error
}

// NewReader wraps an io.Reader for framed decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Err returns the first error encountered by any Read* call, if any. Once an
// error occurs, all further reads on this Reader return zero values.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) readFull(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			r.err = ErrTruncated
		} else {
			r.err = err
		}
	}
	return buf
}

// ReadSignature reads SignatureLength bytes and compares them against the
// expected signature, returning a descriptive error on mismatch so the
// caller can surface a NotASmolsyncFile-style error with the file name.
func (r *Reader) ReadSignature(expected string) error {
	buf := r.readFull(SignatureLength)
	if r.err != nil {
		return r.err
	}
	if string(buf) != expected {
		return fmt.Errorf("not a smolsync file: bad signature %q", buf)
	}
	return nil
}

// ReadByte reads a single uint8 ("B").
func (r *Reader) ReadByte() uint8 {
	buf := r.readFull(1)
	if len(buf) == 0 {
		return 0
	}
	return buf[0]
}

// ReadUint32 reads a uint32 ("I").
func (r *Reader) ReadUint32() uint32 {
	buf := r.readFull(4)
	return binary.LittleEndian.Uint32(buf)
}

// ReadUint64 reads a uint64 ("N").
func (r *Reader) ReadUint64() uint64 {
	buf := r.readFull(8)
	return binary.LittleEndian.Uint64(buf)
}

// ReadInt64 reads an int64 ("q").
func (r *Reader) ReadInt64() int64 {
	return int64(r.ReadUint64())
}

// ReadFloat64 reads an IEEE-754 double ("d").
func (r *Reader) ReadFloat64() float64 {
	return math.Float64frombits(r.ReadUint64())
}

// ReadString reads a uint32-length-prefixed UTF-8 string.
func (r *Reader) ReadString() string {
	n := r.ReadUint32()
	buf := r.readFull(int(n))
	return string(buf)
}

// ReadBytes reads a raw, fixed-size byte span with no length prefix.
func (r *Reader) ReadBytes(n int) []byte {
	return r.readFull(n)
}
