package serialization

import (
	"encoding/binary"
	"io"
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

// MaxArrayLength bounds the element count of any length-prefixed field, so a
// corrupt length cannot trigger a huge allocation.
const MaxArrayLength = 1 << 28

// Writer writes fixed-width fields to an underlying stream.
type Writer struct {
	w     io.Writer
	order binary.ByteOrder
	buf   [8]byte
	n     int64
}

// NewWriter creates a Writer that emits the platform's native byte order.
func NewWriter(w io.Writer) *Writer {
	return NewWriterOrder(w, binary.NativeEndian)
}

// NewWriterOrder creates a Writer that emits the given byte order.
func NewWriterOrder(w io.Writer, order binary.ByteOrder) *Writer {
	return &Writer{w: w, order: order}
}

// Order returns the byte order of the stream.
func (w *Writer) Order() binary.ByteOrder {
	return w.order
}

// Written returns the number of bytes written so far.
func (w *Writer) Written() int64 {
	return w.n
}

func (w *Writer) write(p []byte, what string) error {
	n, err := w.w.Write(p)
	w.n += int64(n)
	if err != nil {
		return errors.Wrapf(err, "failed to write %s", what)
	}
	return nil
}

// Int8 writes a single signed byte.
func (w *Writer) Int8(v int8) error {
	w.buf[0] = byte(v)
	return w.write(w.buf[:1], "int8")
}

// Int32 writes a signed 32-bit integer.
func (w *Writer) Int32(v int32) error {
	w.order.PutUint32(w.buf[:4], uint32(v)) //nolint:gosec // G115: bit reinterpretation
	return w.write(w.buf[:4], "int32")
}

// Uint32 writes an unsigned 32-bit integer.
func (w *Writer) Uint32(v uint32) error {
	w.order.PutUint32(w.buf[:4], v)
	return w.write(w.buf[:4], "uint32")
}

// Uint64 writes an unsigned 64-bit integer.
func (w *Writer) Uint64(v uint64) error {
	w.order.PutUint64(w.buf[:8], v)
	return w.write(w.buf[:8], "uint64")
}

// Float32 writes an IEEE-754 single.
func (w *Writer) Float32(v float32) error {
	w.order.PutUint32(w.buf[:4], math.Float32bits(v))
	return w.write(w.buf[:4], "float32")
}

// Float64 writes an IEEE-754 double.
func (w *Writer) Float64(v float64) error {
	w.order.PutUint64(w.buf[:8], math.Float64bits(v))
	return w.write(w.buf[:8], "float64")
}

// Bytes writes p verbatim.
func (w *Writer) Bytes(p []byte) error {
	return w.write(p, "bytes")
}

func (w *Writer) length(n int) error {
	if n > MaxArrayLength {
		return errors.Wrapf(ErrArrayTooLong, "length %d", n)
	}
	return w.Uint32(uint32(n)) //nolint:gosec // G115: bounded by MaxArrayLength
}

// String writes a uint32 length followed by the bytes of s.
func (w *Writer) String(s string) error {
	if err := w.length(len(s)); err != nil {
		return err
	}
	return w.write([]byte(s), "string")
}

// Float32s writes a uint32 length followed by the values.
func (w *Writer) Float32s(v []float32) error {
	if err := w.length(len(v)); err != nil {
		return err
	}
	for _, f := range v {
		if err := w.Float32(f); err != nil {
			return err
		}
	}
	return nil
}

// Float64s writes a uint32 length followed by the values.
func (w *Writer) Float64s(v []float64) error {
	if err := w.length(len(v)); err != nil {
		return err
	}
	for _, f := range v {
		if err := w.Float64(f); err != nil {
			return err
		}
	}
	return nil
}

// Int8s writes a uint32 length followed by the values.
func (w *Writer) Int8s(v []int8) error {
	if err := w.length(len(v)); err != nil {
		return err
	}
	p := make([]byte, len(v))
	for i, x := range v {
		p[i] = byte(x)
	}
	return w.write(p, "int8 array")
}

// Reader reads fixed-width fields from an underlying stream.
//
// Every multi-byte read takes a swap flag; when set, the field's bytes are
// reversed after decoding, undoing a write on a platform of the opposite
// byte order.
type Reader struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [8]byte
	n     int64
}

// NewReader creates a Reader that decodes the platform's native byte order.
func NewReader(r io.Reader) *Reader {
	return NewReaderOrder(r, binary.NativeEndian)
}

// NewReaderOrder creates a Reader that decodes the given byte order.
func NewReaderOrder(r io.Reader, order binary.ByteOrder) *Reader {
	return &Reader{r: r, order: order}
}

// Read returns the number of bytes consumed so far.
func (r *Reader) Read() int64 {
	return r.n
}

func (r *Reader) read(p []byte, what string) error {
	n, err := io.ReadFull(r.r, p)
	r.n += int64(n)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(ErrShortRead, "reading %s: got %d of %d bytes", what, n, len(p))
	}
	return errors.Wrapf(err, "failed to read %s", what)
}

// Int8 reads a single signed byte. Single bytes are never swapped.
func (r *Reader) Int8() (int8, error) {
	if err := r.read(r.buf[:1], "int8"); err != nil {
		return 0, err
	}
	return int8(r.buf[0]), nil //nolint:gosec // G115: bit reinterpretation
}

// Uint32 reads an unsigned 32-bit integer.
func (r *Reader) Uint32(swap bool) (uint32, error) {
	if err := r.read(r.buf[:4], "uint32"); err != nil {
		return 0, err
	}
	v := r.order.Uint32(r.buf[:4])
	if swap {
		v = bits.ReverseBytes32(v)
	}
	return v, nil
}

// Int32 reads a signed 32-bit integer.
func (r *Reader) Int32(swap bool) (int32, error) {
	v, err := r.Uint32(swap)
	return int32(v), err //nolint:gosec // G115: bit reinterpretation
}

// Uint64 reads an unsigned 64-bit integer.
func (r *Reader) Uint64(swap bool) (uint64, error) {
	if err := r.read(r.buf[:8], "uint64"); err != nil {
		return 0, err
	}
	v := r.order.Uint64(r.buf[:8])
	if swap {
		v = bits.ReverseBytes64(v)
	}
	return v, nil
}

// Float32 reads an IEEE-754 single.
func (r *Reader) Float32(swap bool) (float32, error) {
	v, err := r.Uint32(swap)
	return math.Float32frombits(v), err
}

// Float64 reads an IEEE-754 double.
func (r *Reader) Float64(swap bool) (float64, error) {
	v, err := r.Uint64(swap)
	return math.Float64frombits(v), err
}

// Bytes reads exactly n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	p := make([]byte, n)
	if err := r.read(p, "bytes"); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Reader) length(swap bool) (int, error) {
	n, err := r.Uint32(swap)
	if err != nil {
		return 0, err
	}
	if n > MaxArrayLength {
		return 0, errors.Wrapf(ErrArrayTooLong, "length %d", n)
	}
	return int(n), nil
}

// String reads a uint32 length followed by that many bytes.
func (r *Reader) String(swap bool) (string, error) {
	n, err := r.length(swap)
	if err != nil {
		return "", err
	}
	p := make([]byte, n)
	if err := r.read(p, "string"); err != nil {
		return "", err
	}
	return string(p), nil
}

// Float32s reads a uint32 length followed by that many singles.
func (r *Reader) Float32s(swap bool) ([]float32, error) {
	n, err := r.length(swap)
	if err != nil {
		return nil, err
	}
	v := make([]float32, n)
	for i := range v {
		if v[i], err = r.Float32(swap); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Float64s reads a uint32 length followed by that many doubles.
func (r *Reader) Float64s(swap bool) ([]float64, error) {
	n, err := r.length(swap)
	if err != nil {
		return nil, err
	}
	v := make([]float64, n)
	for i := range v {
		if v[i], err = r.Float64(swap); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Int8s reads a uint32 length followed by that many signed bytes.
func (r *Reader) Int8s(swap bool) ([]int8, error) {
	n, err := r.length(swap)
	if err != nil {
		return nil, err
	}
	p := make([]byte, n)
	if err := r.read(p, "int8 array"); err != nil {
		return nil, err
	}
	v := make([]int8, n)
	for i, b := range p {
		v[i] = int8(b) //nolint:gosec // G115: bit reinterpretation
	}
	return v, nil
}
