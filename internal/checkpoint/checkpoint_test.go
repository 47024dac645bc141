package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ckptconv/internal/tensor"
)

func testStateDict(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()

	weight, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
	require.NoError(t, err)
	copy(weight.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})

	bias, err := tensor.NewRaw(tensor.Shape{3}, tensor.Int64)
	require.NoError(t, err)
	copy(bias.AsInt64(), []int64{-1, 0, 1})

	return map[string]*tensor.RawTensor{
		"layer.weight": weight,
		"layer.bias":   bias,
	}
}

func TestWriteReadV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	stateDict := testStateDict(t)

	writer, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, writer.WriteStateDict(stateDict, "safetensors", map[string]string{"k": "v"}))
	require.NoError(t, writer.Close())

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	header := reader.Header()
	assert.Equal(t, FormatVersion, header.FormatVersion)
	assert.Equal(t, "safetensors", header.SourceFormat)
	assert.Equal(t, "v", reader.Metadata()["k"])
	assert.Len(t, reader.TensorNames(), 2)

	loaded, err := reader.ReadStateDict()
	require.NoError(t, err)
	defer tensor.ReleaseStateDict(loaded)

	require.Contains(t, loaded, "layer.weight")
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, loaded["layer.weight"].AsFloat32())
	assert.Equal(t, tensor.Shape{2, 3}, loaded["layer.weight"].Shape())
	assert.Equal(t, []int64{-1, 0, 1}, loaded["layer.bias"].AsInt64())
}

func TestWriteReadV2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")
	stateDict := testStateDict(t)

	writer, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, writer.WriteStateDictV2(stateDict, "safetensors", nil))
	require.NoError(t, writer.Close())

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, FormatVersionV2, reader.Header().FormatVersion)

	loaded, err := reader.ReadStateDict()
	require.NoError(t, err)
	defer tensor.ReleaseStateDict(loaded)

	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, loaded["layer.weight"].AsFloat32())
}

func TestV2ChecksumDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")

	writer, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, writer.WriteStateDictV2(testStateDict(t), "safetensors", nil))
	require.NoError(t, writer.Close())

	// Flip a byte in the data section (last byte of the file).
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = NewReader(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	// Skipping validation lets the corrupted file open.
	reader, err := NewReaderWithOptions(path, ReaderOptions{
		SkipChecksumValidation: true,
		ValidationLevel:        ValidationStrict,
	})
	require.NoError(t, err)
	require.NoError(t, reader.Close())
}

func TestInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ckpt")
	require.NoError(t, os.WriteFile(path, []byte("NOPE\x01\x00\x00\x00"), 0o600))

	_, err := NewReader(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.ckpt")
	require.NoError(t, os.WriteFile(path, []byte("CKPT\x09\x00\x00\x00\x00\x00\x00\x00"), 0o600))

	_, err := NewReader(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestHalfPrecisionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "half.ckpt")

	bf16, err := tensor.NewRaw(tensor.Shape{2}, tensor.BFloat16)
	require.NoError(t, err)
	copy(bf16.Data(), []byte{0x80, 0x3f, 0x00, 0x40})

	writer, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, writer.WriteStateDictV2(map[string]*tensor.RawTensor{"w": bf16}, "safetensors", nil))
	require.NoError(t, writer.Close())

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	loaded, err := reader.LoadTensor("w")
	require.NoError(t, err)
	assert.Equal(t, tensor.BFloat16, loaded.DType())
	assert.Equal(t, bf16.Data(), loaded.Data())
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantErr  string
	}{
		{
			name: "valid layout",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 16},
				{Name: "b", Offset: 16, Size: 8},
			},
			dataSize: 24,
		},
		{
			name: "overlap",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 16},
				{Name: "b", Offset: 8, Size: 8},
			},
			dataSize: 24,
			wantErr:  "offset_overlap",
		},
		{
			name: "out of bounds",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 128},
			},
			dataSize: 24,
			wantErr:  "out_of_bounds",
		},
		{
			name: "negative size",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: -8},
			},
			dataSize: 24,
			wantErr:  "negative_offset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantErr, verr.Type)
		})
	}
}

func TestValidateTensorName(t *testing.T) {
	assert.NoError(t, ValidateTensorName("model.layers.0.attn.q_proj.weight"))
	assert.Error(t, ValidateTensorName("../../etc/passwd"))
	assert.Error(t, ValidateTensorName("a/b"))
	assert.Error(t, ValidateTensorName("a\x00b"))
}

func TestChecksumHelpers(t *testing.T) {
	data := []byte("tensor bytes")
	sum := ComputeChecksum(data)

	assert.NoError(t, ValidateChecksum(sum, sum))

	var other [32]byte
	assert.ErrorIs(t, ValidateChecksum(sum, other), ErrChecksumMismatch)
}
