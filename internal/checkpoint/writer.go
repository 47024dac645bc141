package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/born-ml/ckptconv/internal/tensor"
)

const toolVersion = "0.2.0" // Current ckptconv version

// Writer writes weight checkpoints in .ckpt format.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates a new .ckpt file writer.
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

// buildTensorMetas computes the layout of the data section: tensor order
// (alphabetical, for reproducible output) and per-tensor metadata with
// packed offsets.
func buildTensorMetas(stateDict map[string]*tensor.RawTensor) ([]string, []TensorMeta) {
	tensorOrder := make([]string, 0, len(stateDict))
	for name := range stateDict {
		tensorOrder = append(tensorOrder, name)
	}
	sort.Strings(tensorOrder)

	metas := make([]TensorMeta, 0, len(stateDict))
	var currentOffset int64
	for _, name := range tensorOrder {
		raw := stateDict[name]
		size := int64(raw.ByteSize())

		metas = append(metas, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: currentOffset,
			Size:   size,
		})

		currentOffset += size
	}

	return tensorOrder, metas
}

// newHeader builds a header for the given state dictionary.
func newHeader(version int, sourceFormat string, metas []TensorMeta, metadata map[string]string) Header {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return Header{
		FormatVersion: version,
		ToolVersion:   toolVersion,
		SourceFormat:  sourceFormat,
		CreatedAt:     time.Now().UTC(),
		Tensors:       metas,
		Metadata:      metadata,
	}
}

// WriteStateDict writes a state dictionary to the .ckpt file using format v1.
//
// The state dictionary is a map from tensor names to tensors. Tensors are
// written in alphabetical order by name.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, sourceFormat string, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	tensorOrder, metas := buildTensorMetas(stateDict)
	header := newHeader(FormatVersion, sourceFormat, metas, metadata)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	// Write magic bytes
	if _, err := w.file.WriteString(MagicBytes); err != nil {
		return fmt.Errorf("failed to write magic bytes: %w", err)
	}

	// Write version
	if err := binary.Write(w.file, binary.LittleEndian, uint32(FormatVersion)); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}

	// Write flags
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if err := binary.Write(w.file, binary.LittleEndian, flags); err != nil {
		return fmt.Errorf("failed to write flags: %w", err)
	}

	// Write header size
	headerSize := uint64(len(headerJSON))
	if err := binary.Write(w.file, binary.LittleEndian, headerSize); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}

	// Write header JSON
	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Calculate padding to align tensor data to HeaderAlignment
	//nolint:gosec // G115: headerSize is small (< 100MB max), conversion is safe
	currentPos := int64(4+4+4+8) + int64(headerSize) // magic + version + flags + headerSize + header
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if padding > 0 {
		paddingBytes := make([]byte, padding)
		if _, err := w.file.Write(paddingBytes); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	// Write tensor data in order
	for _, name := range tensorOrder {
		raw := stateDict[name]
		if _, err := w.file.Write(raw.Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}

// WriteStateDictV2 writes a state dictionary to the .ckpt file using format v2
// with SHA-256 checksum.
//
// Format v2 includes a 64-byte fixed header with the data-section size and a
// SHA-256 checksum at offset 0x20. v2 readers can read v1; v1-only readers
// reject v2 files.
func (w *Writer) WriteStateDictV2(stateDict map[string]*tensor.RawTensor, sourceFormat string, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	tensorOrder, metas := buildTensorMetas(stateDict)
	header := newHeader(FormatVersionV2, sourceFormat, metas, metadata)

	// Collect all tensor data to compute checksum
	var tensorDataBuf []byte
	for _, name := range tensorOrder {
		tensorDataBuf = append(tensorDataBuf, stateDict[name].Data()...)
	}

	checksum := ComputeChecksum(tensorDataBuf)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	headerSize := uint64(len(headerJSON))
	dataSize := uint64(len(tensorDataBuf))

	// Write v2 fixed header (64 bytes)
	fixedHeader := make([]byte, FixedHeaderSize)

	// 0x00-0x03: Magic bytes "CKPT"
	copy(fixedHeader[0:4], MagicBytes)

	// 0x04-0x07: Version (2)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersionV2))

	// 0x08-0x0B: Flags
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)

	// 0x0C-0x0F: Reserved (0)

	// 0x10-0x17: Header size
	binary.LittleEndian.PutUint64(fixedHeader[16:24], headerSize)

	// 0x18-0x1F: Data size
	binary.LittleEndian.PutUint64(fixedHeader[24:32], dataSize)

	// 0x20-0x3F: SHA-256 checksum
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.file.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}

	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	// Calculate padding to align tensor data to 64-byte boundary
	//nolint:gosec // G115: headerSize is small (< 100MB max), conversion is safe
	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if padding > 0 {
		paddingBytes := make([]byte, padding)
		if _, err := w.file.Write(paddingBytes); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.file.Write(tensorDataBuf); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
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
