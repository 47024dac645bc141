// Package checkpoint provides the native .ckpt container for converted
// model weights.
//
// The .ckpt format is a simple binary container:
//
//	Format Structure (v1):
//	  [4 bytes: Magic "CKPT"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
//	Format Structure (v2):
//	  [64 bytes: fixed header — magic, version, flags, header size,
//	             data size, SHA-256 checksum at offset 0x20]
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
// The format supports:
//   - float32/float64/float16/bfloat16/int32/int64/uint8/bool tensors
//   - Arbitrary tensor shapes
//   - Metadata preservation
//   - Integrity checking via SHA-256 (v2)
//
// Example usage:
//
//	writer, err := checkpoint.NewWriter("model.ckpt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer writer.Close()
//	if err := writer.WriteStateDictV2(stateDict, "safetensors", nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	reader, err := checkpoint.NewReader("model.ckpt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reader.Close()
//	stateDict, err := reader.ReadStateDict()
package checkpoint
