package tensor

import (
	"testing"
)

func TestNewRawZeroInitialized(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	for i, b := range raw.Data() {
		if b != 0 {
			t.Errorf("byte %d = %d, want 0", i, b)
		}
	}

	if raw.ByteSize() != 24 {
		t.Errorf("ByteSize = %d, want 24", raw.ByteSize())
	}
}

func TestNewRawInvalidShape(t *testing.T) {
	if _, err := NewRaw(Shape{2, 0}, Float32); err == nil {
		t.Error("expected error for zero dimension")
	}
	if _, err := NewRaw(Shape{-1}, Float32); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestRawTensorAsFloat32(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Float32)
	data := raw.AsFloat32()

	if len(data) != 6 {
		t.Errorf("AsFloat32 length = %d, want 6", len(data))
	}

	// Modify and verify zero-copy
	data[0] = 42
	if raw.AsFloat32()[0] != 42 {
		t.Error("AsFloat32 should return zero-copy slice")
	}
}

func TestRawTensorAsInt64(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Int64)
	data := raw.AsInt64()

	if len(data) != 6 {
		t.Errorf("AsInt64 length = %d, want 6", len(data))
	}

	data[0] = 42
	if raw.AsInt64()[0] != 42 {
		t.Error("AsInt64 should return zero-copy slice")
	}
}

func TestRawTensorAsUint8(t *testing.T) {
	raw, _ := NewRaw(Shape{4, 4}, Uint8)
	data := raw.AsUint8()

	if len(data) != 16 {
		t.Errorf("AsUint8 length = %d, want 16", len(data))
	}

	data[0] = 255
	if raw.AsUint8()[0] != 255 {
		t.Error("AsUint8 should return zero-copy slice")
	}
}

func TestRawTensorDTypeMismatchPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for dtype mismatch")
		}
	}()

	raw, _ := NewRaw(Shape{2}, Int32)
	_ = raw.AsFloat32()
}

func TestRawTensorRelease(t *testing.T) {
	raw, _ := NewRaw(Shape{1024}, Float32)
	raw.Release()

	if raw.Data() != nil {
		t.Error("expected buffer to be dropped after Release")
	}
}

func TestRawTensorCloneSharesBuffer(t *testing.T) {
	raw, _ := NewRaw(Shape{4}, Float32)
	raw.AsFloat32()[0] = 7

	clone := raw.Clone()
	if clone.AsFloat32()[0] != 7 {
		t.Error("clone should share buffer data")
	}

	// Buffer survives until the last reference releases.
	raw.Release()
	if clone.Data() == nil {
		t.Error("buffer released while clone still holds a reference")
	}
	clone.Release()
	if clone.Data() != nil {
		t.Error("expected buffer to be dropped after final Release")
	}
}

func TestReleaseStateDict(t *testing.T) {
	a, _ := NewRaw(Shape{2}, Float32)
	b, _ := NewRaw(Shape{3}, Int64)

	ReleaseStateDict(map[string]*RawTensor{"a": a, "b": b})

	if a.Data() != nil || b.Data() != nil {
		t.Error("expected all buffers dropped")
	}
}

func TestHalfPrecisionByteSizes(t *testing.T) {
	f16, _ := NewRaw(Shape{5}, Float16)
	if f16.ByteSize() != 10 {
		t.Errorf("Float16 ByteSize = %d, want 10", f16.ByteSize())
	}

	bf16, _ := NewRaw(Shape{5}, BFloat16)
	if bf16.ByteSize() != 10 {
		t.Errorf("BFloat16 ByteSize = %d, want 10", bf16.ByteSize())
	}
}
