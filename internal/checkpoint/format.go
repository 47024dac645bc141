package checkpoint

import (
	"time"

	"github.com/born-ml/ckptconv/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "CKPT"
	FormatVersion   = 1    // v1: Basic format without checksum
	FormatVersionV2 = 2    // v2: With SHA-256 checksum
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in v2 fixed header
)

// Data type string constants for serialization.
const (
	DTypeFloat32  = "float32"
	DTypeFloat64  = "float64"
	DTypeFloat16  = "float16"
	DTypeBFloat16 = "bfloat16"
	DTypeInt32    = "int32"
	DTypeInt64    = "int64"
	DTypeUint8    = "uint8"
	DTypeBool     = "bool"
)

// Flags for the .ckpt format.
const (
	FlagCompressed  uint32 = 1 << 0 // bit 0: gzip compression (reserved)
	FlagHasMetadata uint32 = 1 << 1 // bit 1: custom metadata included
)

// Header represents the JSON header in a .ckpt file.
type Header struct {
	FormatVersion int               `json:"format_version"` // Version of the .ckpt format
	ToolVersion   string            `json:"tool_version"`   // Version of ckptconv that created this file
	SourceFormat  string            `json:"source_format"`  // Format the weights were converted from
	CreatedAt     time.Time         `json:"created_at"`     // When the file was created
	Tensors       []TensorMeta      `json:"tensors"`        // Tensor metadata
	Metadata      map[string]string `json:"metadata"`       // Custom metadata
}

// TensorMeta describes a tensor in the .ckpt file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "model.layers.0.attn.q_proj.weight")
	DType  string `json:"dtype"`  // Data type (e.g., "float32", "bfloat16")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// dtypeToString converts tensor.DataType to string representation.
func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	case tensor.Float16:
		return DTypeFloat16
	case tensor.BFloat16:
		return DTypeBFloat16
	case tensor.Int32:
		return DTypeInt32
	case tensor.Int64:
		return DTypeInt64
	case tensor.Uint8:
		return DTypeUint8
	case tensor.Bool:
		return DTypeBool
	default:
		return "unknown"
	}
}

// stringToDtype converts string representation to tensor.DataType.
func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	case DTypeFloat16:
		return tensor.Float16, true
	case DTypeBFloat16:
		return tensor.BFloat16, true
	case DTypeInt32:
		return tensor.Int32, true
	case DTypeInt64:
		return tensor.Int64, true
	case DTypeUint8:
		return tensor.Uint8, true
	case DTypeBool:
		return tensor.Bool, true
	default:
		return 0, false
	}
}
