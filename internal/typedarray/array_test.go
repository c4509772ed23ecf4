package typedarray

import "testing"

func TestNewUnknownKindFails(t *testing.T) {
	if _, err := New(KindNone, 4); err == nil {
		t.Fatalf("expected error constructing array of KindNone")
	}
}

func TestByteSize(t *testing.T) {
	a, err := New(KindI32, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.ByteSize() != 12 {
		t.Fatalf("ByteSize = %d, want 12", a.ByteSize())
	}
}

func TestCopyFromBytesBoundary(t *testing.T) {
	a, _ := New(KindU8, 4)
	if err := a.CopyFromBytes([]byte{1, 2, 3, 4}, 0); err != nil {
		t.Fatalf("copy exactly filling buffer should succeed: %v", err)
	}
	if err := a.CopyFromBytes([]byte{5}, 4); err == nil {
		t.Fatalf("copy past byte_size should fail")
	}
}

func TestAssignExternalNoRealloc(t *testing.T) {
	a, _ := New(KindU8, 1)
	ext := make([]byte, 4)
	if err := a.AssignExternal(ext); err != nil {
		t.Fatalf("AssignExternal: %v", err)
	}
	if !a.IsExternal() {
		t.Fatalf("expected array to report external")
	}
	if err := a.Resize(4); err != nil {
		t.Fatalf("resize within capacity should succeed: %v", err)
	}
	if err := a.Resize(5); err == nil {
		t.Fatalf("resize beyond external capacity should fail")
	}
}

func TestResizeOwnedReallocates(t *testing.T) {
	a, _ := New(KindU8, 2)
	if err := a.Resize(10); err != nil {
		t.Fatalf("owned resize should succeed: %v", err)
	}
	if a.Size() != 10 {
		t.Fatalf("Size = %d, want 10", a.Size())
	}
}

func TestIsBytesEqual(t *testing.T) {
	a, _ := New(KindU8, 4)
	a.CopyFromBytes([]byte{1, 2, 3, 4}, 0)
	if !a.IsBytesEqual([]byte{2, 3}, 1) {
		t.Fatalf("expected bytes at offset 1 to equal [2,3]")
	}
	if a.IsBytesEqual([]byte{9, 9}, 1) {
		t.Fatalf("did not expect mismatched bytes to be equal")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a, _ := New(KindU8, 2)
	a.CopyFromBytes([]byte{7, 8}, 0)
	clone := a.Clone()
	a.CopyFromBytes([]byte{0, 0}, 0)
	if clone.Buf()[0] != 7 || clone.Buf()[1] != 8 {
		t.Fatalf("clone should retain original bytes, got %v", clone.Buf())
	}
}

func TestScalarRoundTrip(t *testing.T) {
	a, _ := New(KindF32, 4)
	a.CopyFromBytes(EncodeScalar(float32(3.5)), a.ByteIndex(0))
	got, err := ReadScalar[float32](a, 0)
	if err != nil {
		t.Fatalf("ReadScalar: %v", err)
	}
	if got != 3.5 {
		t.Fatalf("got %v, want 3.5", got)
	}
}

func TestScalarTypeMismatch(t *testing.T) {
	a, _ := New(KindI32, 1)
	if _, err := ReadScalar[float64](a, 0); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestKindFromStringUnknown(t *testing.T) {
	if _, err := KindFromString("nonsense"); err == nil {
		t.Fatalf("expected error for unknown type name")
	}
}

func TestKindFromStringGrammar(t *testing.T) {
	k, err := KindFromString("int")
	if err != nil || k != KindI32 {
		t.Fatalf("KindFromString(int) = %v, %v; want KindI32, nil", k, err)
	}
}
