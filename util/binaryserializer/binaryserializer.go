package binaryserializer

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// maxItems is the number of buffers to keep in the free
// list to use for binary serialization and deserialization.
const maxItems = 1024

// Borrow returns a byte slice from the free list with a length of 8. A new
// buffer is allocated if there are not any available on the free list.
func Borrow() []byte {
	var buf []byte
	select {
	case buf = <-binaryFreeList:
	default:
		buf = make([]byte, 8)
	}
	return buf[:8]
}

// Return puts the provided byte slice back on the free list. The buffer MUST
// have been obtained via the Borrow function and therefore have a cap of 8.
func Return(buf []byte) {
	select {
	case binaryFreeList <- buf:
	default:
		// Let it go to the garbage collector.
	}
}

// readN fills n bytes of a borrowed buffer from r. A reader that runs dry
// midway yields io.ErrUnexpectedEOF, an empty one io.EOF.
func readN(r io.Reader, n int) ([]byte, error) {
	buf := Borrow()[:n]
	if _, err := io.ReadFull(r, buf); err != nil {
		Return(buf)
		return nil, errors.WithStack(err)
	}
	return buf, nil
}

func writeN(w io.Writer, buf []byte) error {
	_, err := w.Write(buf)
	Return(buf)
	return errors.WithStack(err)
}

// Uint8 reads a single byte from the provided reader using a buffer from the
// free list and returns it as a uint8.
func Uint8(r io.Reader) (uint8, error) {
	buf, err := readN(r, 1)
	if err != nil {
		return 0, err
	}
	rv := buf[0]
	Return(buf)
	return rv, nil
}

// Uint16 reads two little endian bytes from the provided reader using a
// buffer from the free list and returns the resulting uint16.
func Uint16(r io.Reader) (uint16, error) {
	buf, err := readN(r, 2)
	if err != nil {
		return 0, err
	}
	rv := binary.LittleEndian.Uint16(buf)
	Return(buf)
	return rv, nil
}

// Uint32 reads four little endian bytes from the provided reader using a
// buffer from the free list and returns the resulting uint32.
func Uint32(r io.Reader) (uint32, error) {
	buf, err := readN(r, 4)
	if err != nil {
		return 0, err
	}
	rv := binary.LittleEndian.Uint32(buf)
	Return(buf)
	return rv, nil
}

// Uint64 reads eight little endian bytes from the provided reader using a
// buffer from the free list and returns the resulting uint64.
func Uint64(r io.Reader) (uint64, error) {
	buf, err := readN(r, 8)
	if err != nil {
		return 0, err
	}
	rv := binary.LittleEndian.Uint64(buf)
	Return(buf)
	return rv, nil
}

// PutUint8 copies the provided uint8 into a buffer from the free list and
// writes the resulting byte to the given writer.
func PutUint8(w io.Writer, val uint8) error {
	buf := Borrow()[:1]
	buf[0] = val
	return writeN(w, buf)
}

// PutUint16 serializes the provided uint16 in little endian into a buffer
// from the free list and writes the resulting two bytes to the given writer.
func PutUint16(w io.Writer, val uint16) error {
	buf := Borrow()[:2]
	binary.LittleEndian.PutUint16(buf, val)
	return writeN(w, buf)
}

// PutUint32 serializes the provided uint32 in little endian into a buffer
// from the free list and writes the resulting four bytes to the given writer.
func PutUint32(w io.Writer, val uint32) error {
	buf := Borrow()[:4]
	binary.LittleEndian.PutUint32(buf, val)
	return writeN(w, buf)
}

// PutUint64 serializes the provided uint64 in little endian into a buffer
// from the free list and writes the resulting eight bytes to the given writer.
func PutUint64(w io.Writer, val uint64) error {
	buf := Borrow()[:8]
	binary.LittleEndian.PutUint64(buf, val)
	return writeN(w, buf)
}

// binaryFreeList provides a free list of buffers to use for serializing and
// deserializing primitive integer values to and from io.Readers and io.Writers.
//
// It is a concurrent safe free list of byte slices (up to the maximum number
// defined by the maxItems constant) that have a cap of 8, enough for a
// uint64. Borrowing from it keeps the codec from allocating a buffer for
// every integer it reads or writes.
var binaryFreeList = make(chan []byte, maxItems)
