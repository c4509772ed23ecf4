// Package typedarray implements the fixed-type, byte-addressable buffer
// every channel carries: a contiguous buffer tagged with an element kind
// and count, with byte-granular copy/compare/clone semantics.
package typedarray

import "fmt"

// TypedArray owns (or borrows) a contiguous byte buffer tagged with an
// element kind and length. Constructors fail for KindNone since no safe
// default buffer shape exists for it.
type TypedArray struct {
	kind     Kind
	length   int
	buf      []byte
	external bool
}

// New allocates an owned, zero-filled TypedArray of kind and length
// elements.
func New(kind Kind, length int) (*TypedArray, error) {
	size := ElemSize(kind)
	if size == 0 {
		return nil, fmt.Errorf("typedarray: cannot construct array of type %s", kind)
	}
	if length < 0 {
		return nil, fmt.Errorf("typedarray: negative length %d", length)
	}
	return &TypedArray{
		kind:   kind,
		length: length,
		buf:    make([]byte, length*size),
	}, nil
}

// Type returns the array's element kind.
func (a *TypedArray) Type() Kind { return a.kind }

// Size returns the element count.
func (a *TypedArray) Size() int { return a.length }

// ByteSize returns length * sizeof(element).
func (a *TypedArray) ByteSize() int { return a.length * ElemSize(a.kind) }

// Capacity returns the backing buffer's byte capacity.
func (a *TypedArray) Capacity() int { return cap(a.buf) }

// Buf exposes the raw backing buffer. Callers must not retain it across a
// Resize of an owned array, since Resize may reallocate.
func (a *TypedArray) Buf() []byte { return a.buf }

// IsExternal reports whether the buffer was assigned via AssignExternal
// rather than owned by this array.
func (a *TypedArray) IsExternal() bool { return a.external }

// ByteIndex returns the byte offset of element i.
func (a *TypedArray) ByteIndex(i int) int { return i * ElemSize(a.kind) }

// At returns the raw bytes of element i.
func (a *TypedArray) At(i int) ([]byte, error) {
	size := ElemSize(a.kind)
	off := i * size
	if i < 0 || off+size > len(a.buf) {
		return nil, fmt.Errorf("typedarray: index %d out of bounds (size %d)", i, a.length)
	}
	return a.buf[off : off+size], nil
}

// CopyFromBytes copies src into the buffer at byteOffset. For an owned
// array that would overflow the current byte size, the caller must Resize
// first — CopyFromBytes never reallocates.
func (a *TypedArray) CopyFromBytes(src []byte, byteOffset int) error {
	if byteOffset < 0 || byteOffset+len(src) > len(a.buf) {
		return fmt.Errorf("typedarray: copy of %d bytes at offset %d overflows %d-byte buffer",
			len(src), byteOffset, len(a.buf))
	}
	copy(a.buf[byteOffset:byteOffset+len(src)], src)
	return nil
}

// CopyToBytes copies len(dst) bytes starting at byteOffset into dst.
func (a *TypedArray) CopyToBytes(dst []byte, byteOffset int) error {
	if byteOffset < 0 || byteOffset+len(dst) > len(a.buf) {
		return fmt.Errorf("typedarray: read of %d bytes at offset %d overflows %d-byte buffer",
			len(dst), byteOffset, len(a.buf))
	}
	copy(dst, a.buf[byteOffset:byteOffset+len(dst)])
	return nil
}

// AssignExternal replaces the buffer with buf without copying or taking
// ownership: the array will not reallocate it, and destruction must leave
// it alone (Go's GC makes explicit "do not free" a no-op, but Resize
// beyond its capacity still fails, matching the C++ contract).
func (a *TypedArray) AssignExternal(buf []byte) error {
	size := ElemSize(a.kind)
	if size == 0 {
		return fmt.Errorf("typedarray: cannot assign external buffer to untyped array")
	}
	if len(buf)%size != 0 {
		return fmt.Errorf("typedarray: external buffer of %d bytes is not a multiple of element size %d", len(buf), size)
	}
	a.buf = buf
	a.length = len(buf) / size
	a.external = true
	return nil
}

// Resize changes the element count. An owned array reallocates and
// zero-extends as needed. An externally-assigned array fails if the new
// size would exceed the buffer it was given: resize-beyond-capacity fails
// rather than reallocating.
func (a *TypedArray) Resize(n int) error {
	if n < 0 {
		return fmt.Errorf("typedarray: negative size %d", n)
	}
	size := ElemSize(a.kind)
	newByteSize := n * size
	if a.external {
		if newByteSize > cap(a.buf) {
			return fmt.Errorf("typedarray: cannot resize externally-assigned array beyond its %d-byte capacity", cap(a.buf))
		}
		a.buf = a.buf[:newByteSize]
		a.length = n
		return nil
	}
	if newByteSize <= cap(a.buf) {
		a.buf = a.buf[:newByteSize]
	} else {
		newBuf := make([]byte, newByteSize)
		copy(newBuf, a.buf)
		a.buf = newBuf
	}
	a.length = n
	return nil
}

// IsBytesEqual reports whether len(other) bytes of this array's buffer,
// starting at byteOffset, equal other byte-for-byte.
func (a *TypedArray) IsBytesEqual(other []byte, byteOffset int) bool {
	if byteOffset < 0 || byteOffset+len(other) > len(a.buf) {
		return false
	}
	existing := a.buf[byteOffset : byteOffset+len(other)]
	if len(existing) != len(other) {
		return false
	}
	for i := range existing {
		if existing[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone produces an independently-owned array of the same kind and
// contents; mutating the clone never affects the original.
func (a *TypedArray) Clone() *TypedArray {
	buf := make([]byte, len(a.buf))
	copy(buf, a.buf)
	return &TypedArray{
		kind:   a.kind,
		length: a.length,
		buf:    buf,
	}
}

// String renders a short description, e.g. "u32[4]".
func (a *TypedArray) String() string {
	return fmt.Sprintf("%s[%d]", a.kind, a.length)
}
