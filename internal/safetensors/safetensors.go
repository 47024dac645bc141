package safetensors

import (
	"encoding/json"
	"fmt"

	"github.com/born-ml/ckptconv/internal/tensor"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// DType represents a SafeTensors data type tag.
type DType string

// Supported SafeTensors dtypes.
const (
	F16  DType = "F16"
	F32  DType = "F32"
	F64  DType = "F64"
	BF16 DType = "BF16"
	I32  DType = "I32"
	I64  DType = "I64"
	U8   DType = "U8"
	BOOL DType = "BOOL"
)

// TensorInfo describes a tensor entry in the SafeTensors header.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end]
}

// Header is the JSON header of a SafeTensors file. Tensor entries and the
// optional __metadata__ block share one JSON object, so unmarshaling has to
// split them apart.
type Header struct {
	Metadata map[string]string     `json:"-"`
	Tensors  map[string]TensorInfo `json:"-"`
}

// UnmarshalJSON implements custom JSON unmarshaling for Header.
func (h *Header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]TensorInfo)
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}

	return nil
}

// ToDataType converts a SafeTensors dtype tag to a tensor.DataType.
func (dt DType) ToDataType() (tensor.DataType, error) {
	switch dt {
	case F32:
		return tensor.Float32, nil
	case F64:
		return tensor.Float64, nil
	case F16:
		return tensor.Float16, nil
	case BF16:
		return tensor.BFloat16, nil
	case I32:
		return tensor.Int32, nil
	case I64:
		return tensor.Int64, nil
	case U8:
		return tensor.Uint8, nil
	case BOOL:
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", dt)
	}
}

// FromDataType converts a tensor.DataType to its SafeTensors dtype tag.
func FromDataType(dt tensor.DataType) (DType, error) {
	switch dt {
	case tensor.Float32:
		return F32, nil
	case tensor.Float64:
		return F64, nil
	case tensor.Float16:
		return F16, nil
	case tensor.BFloat16:
		return BF16, nil
	case tensor.Int32:
		return I32, nil
	case tensor.Int64:
		return I64, nil
	case tensor.Uint8:
		return U8, nil
	case tensor.Bool:
		return BOOL, nil
	default:
		return "", fmt.Errorf("dtype %s has no SafeTensors representation", dt)
	}
}
