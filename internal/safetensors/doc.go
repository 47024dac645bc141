// Package safetensors reads and writes the SafeTensors weight container
// (Hugging Face standard): an 8-byte little-endian header size, a JSON
// header mapping tensor names to dtype/shape/offset entries, and a flat
// data section of raw tensor bytes.
//
// The reader memory-maps the file, so opening a multi-gigabyte weight file
// costs only the header parse; tensor bytes are paged in when copied out.
//
// Example:
//
//	reader, err := safetensors.Open("model.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reader.Close()
//
//	stateDict, err := reader.LoadStateDict()
package safetensors
