package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/born-ml/ckptconv/internal/tensor"
)

// maxHeaderSize bounds the JSON header to reject garbage files early.
const maxHeaderSize = 100 * 1024 * 1024 // 100MB

// Reader reads SafeTensors files through a read-only memory mapping.
// Only the header is parsed up front; tensor payloads are copied out of the
// mapped region on demand via the OS page cache.
//
// Always call Close() when done to unmap the file (use defer).
type Reader struct {
	file       *os.File
	data       []byte // mmap'd region (read-only)
	size       int64
	header     Header
	dataOffset int64
	closed     bool
}

// Open creates a memory-mapped reader for a SafeTensors file.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if stat.Size() < 8 {
		_ = file.Close()
		return nil, fmt.Errorf("file too small: %d bytes (minimum 8 bytes required)", stat.Size())
	}

	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	r := &Reader{
		file: file,
		data: data,
		size: stat.Size(),
	}

	if err := r.parseHeader(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	return r, nil
}

// parseHeader reads and parses the SafeTensors header from the mapped region.
func (r *Reader) parseHeader() error {
	headerSize := binary.LittleEndian.Uint64(r.data[0:8])

	if headerSize > maxHeaderSize {
		return fmt.Errorf("invalid header size: %d (too large)", headerSize)
	}
	//nolint:gosec // G115: headerSize bounded by maxHeaderSize above
	if int64(8+headerSize) > r.size {
		return fmt.Errorf("header size %d exceeds file size %d", headerSize, r.size)
	}

	if err := json.Unmarshal(r.data[8:8+headerSize], &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize bounded by maxHeaderSize above
	r.dataOffset = int64(8 + headerSize)

	// Reject entries pointing outside the data section before anything
	// reads them.
	dataSize := r.size - r.dataOffset
	for name, info := range r.header.Tensors {
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end < start || end > dataSize {
			return fmt.Errorf("tensor %s: data offsets [%d, %d] out of bounds (data section %d bytes)",
				name, start, end, dataSize)
		}
	}

	return nil
}

// Close unmaps and closes the SafeTensors file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var unmapErr error
	if r.data != nil {
		unmapErr = munmapFile(r.data)
		r.data = nil
	}
	if closeErr := r.file.Close(); closeErr != nil {
		return closeErr
	}
	return unmapErr
}

// Metadata returns the __metadata__ map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns a list of all tensor names in the file.
func (r *Reader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *Reader) TensorInfo(name string) (*TensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return &info, nil
}

// ReadTensorData copies raw tensor data out of the mapped region.
func (r *Reader) ReadTensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	start := r.dataOffset + info.DataOffsets[0]
	end := r.dataOffset + info.DataOffsets[1]

	data := make([]byte, end-start)
	copy(data, r.data[start:end])
	return data, nil
}

// LoadTensor loads a tensor from the file into a RawTensor.
func (r *Reader) LoadTensor(name string) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, err := info.DType.ToDataType()
	if err != nil {
		return nil, fmt.Errorf("failed to convert dtype for tensor %s: %w", name, err)
	}

	shape := tensor.Shape(info.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	size := info.DataOffsets[1] - info.DataOffsets[0]
	if want := int64(shape.NumElements() * dtype.Size()); size != want {
		return nil, fmt.Errorf("tensor %s: data size %d does not match shape %v dtype %s (want %d)",
			name, size, shape, dtype, want)
	}

	raw, err := tensor.NewRaw(shape, dtype)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	start := r.dataOffset + info.DataOffsets[0]
	end := r.dataOffset + info.DataOffsets[1]
	copy(raw.Data(), r.data[start:end])

	return raw, nil
}

// LoadStateDict loads every tensor in the file into a state dictionary.
// The caller owns the returned tensors and should release them when done.
func (r *Reader) LoadStateDict() (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for name := range r.header.Tensors {
		raw, err := r.LoadTensor(name)
		if err != nil {
			tensor.ReleaseStateDict(stateDict)
			return nil, fmt.Errorf("failed to load tensor %s: %w", name, err)
		}
		stateDict[name] = raw
	}

	return stateDict, nil
}
