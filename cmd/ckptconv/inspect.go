package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/safetensors"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "List tensors and metadata of a .safetensors or .ckpt file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		switch filepath.Ext(path) {
		case ".safetensors":
			return inspectSafeTensors(path)
		case ".ckpt":
			return inspectCheckpoint(path)
		default:
			return fmt.Errorf("unsupported file type: %s (want .safetensors or .ckpt)", path)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspectSafeTensors(path string) error {
	reader, err := safetensors.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	fmt.Printf("%s (SafeTensors)\n", path)
	printMetadata(reader.Metadata())

	names := reader.TensorNames()
	sort.Strings(names)
	fmt.Printf("tensors: %d\n", len(names))
	for _, name := range names {
		info, err := reader.TensorInfo(name)
		if err != nil {
			return err
		}
		fmt.Printf("  %-48s %-8s %v\n", name, info.DType, info.Shape)
	}
	return nil
}

func inspectCheckpoint(path string) error {
	reader, err := checkpoint.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	header := reader.Header()
	fmt.Printf("%s (checkpoint v%d, source: %s, created: %s)\n",
		path, header.FormatVersion, header.SourceFormat, header.CreatedAt.Format("2006-01-02 15:04:05"))
	printMetadata(header.Metadata)

	fmt.Printf("tensors: %d\n", len(header.Tensors))
	for _, meta := range header.Tensors {
		fmt.Printf("  %-48s %-8s %v\n", meta.Name, meta.DType, meta.Shape)
	}
	return nil
}

func printMetadata(metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println("metadata:")
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, metadata[k])
	}
}
