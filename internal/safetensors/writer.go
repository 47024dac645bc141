package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/born-ml/ckptconv/internal/tensor"
)

// Writer writes SafeTensors files.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates a new SafeTensors file writer.
func NewWriter(path string) (*Writer, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &Writer{
		file:   file,
		closed: false,
	}, nil
}

// Write writes tensors to a SafeTensors file in one call.
func Write(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	writer, err := NewWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = writer.Close() // Best effort close
	}()

	return writer.WriteStateDict(stateDict, metadata)
}

// WriteStateDict writes a state dictionary to the SafeTensors file.
//
// Tensors are written in alphabetical order by name (SafeTensors requirement).
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	tensorNames := make([]string, 0, len(stateDict))
	for name := range stateDict {
		tensorNames = append(tensorNames, name)
	}
	sort.Strings(tensorNames)

	header := make(map[string]interface{})
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	// Calculate data offsets for each tensor
	var currentOffset int64
	for _, name := range tensorNames {
		raw := stateDict[name]
		size := int64(raw.ByteSize())

		dtype, err := FromDataType(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}

		header[name] = TensorInfo{
			DType:       dtype,
			Shape:       []int(raw.Shape()),
			DataOffsets: [2]int64{currentOffset, currentOffset + size},
		}
		currentOffset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	// Write header size (8 bytes, little-endian uint64)
	headerSize := uint64(len(headerJSON))
	if err := binary.Write(w.file, binary.LittleEndian, headerSize); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}

	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write tensor data in alphabetical order
	for _, name := range tensorNames {
		raw := stateDict[name]
		if _, err := w.file.Write(raw.Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the writer and the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
