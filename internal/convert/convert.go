// Package convert implements the batch conversion of SafeTensors weight
// files into .ckpt checkpoints.
//
// Conversion is sequential: each file is loaded fully into memory,
// re-serialized, and its tensors released before the next file starts, so
// peak memory stays at roughly one file's worth of tensor data. A failure
// on one file is recorded and the batch continues; only a missing base
// directory aborts the run.
package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/born-ml/ckptconv/internal/checkpoint"
	"github.com/born-ml/ckptconv/internal/logger"
	"github.com/born-ml/ckptconv/internal/safetensors"
	"github.com/born-ml/ckptconv/internal/tensor"
)

// File extensions handled by the converter.
const (
	SourceExt = ".safetensors"
	TargetExt = ".ckpt"
)

// ErrPathNotFound indicates the base directory does not exist.
// It aborts the run before any file is touched.
var ErrPathNotFound = errors.New("path not found")

// ConversionError records a per-file load or save failure.
type ConversionError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Options configures a batch conversion run.
type Options struct {
	// Dir is the base directory scanned for *.safetensors files (non-recursive).
	Dir string

	// SkipExisting skips files whose .ckpt target already exists.
	// When false, existing targets are overwritten.
	SkipExisting bool
}

// Report summarizes a batch conversion run.
type Report struct {
	Found     int // source files discovered
	Converted int // files converted successfully
	Skipped   int // files skipped because the target already existed
	Failed    int // files that failed to load or save

	// Errors holds one entry per failed file, in discovery order.
	Errors []*ConversionError
}

// Run converts every *.safetensors file in opts.Dir into a sibling .ckpt
// file.
//
// A missing directory returns ErrPathNotFound with no file I/O performed.
// An empty directory is not an error: the report comes back with zero work.
// Per-file failures are recorded in the report and do not stop the batch.
func Run(opts Options) (*Report, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, opts.Dir)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", opts.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrPathNotFound, opts.Dir)
	}

	sources, err := filepath.Glob(filepath.Join(opts.Dir, "*"+SourceExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", opts.Dir, err)
	}
	sort.Strings(sources)

	report := &Report{Found: len(sources)}

	if len(sources) == 0 {
		logger.Log.Info("No files to convert", "dir", opts.Dir, "ext", SourceExt)
		return report, nil
	}

	logger.Log.Info("Found files to convert", "count", len(sources), "dir", opts.Dir)

	for i, src := range sources {
		dst := strings.TrimSuffix(src, SourceExt) + TargetExt
		base := filepath.Base(src)

		if opts.SkipExisting {
			if _, err := os.Stat(dst); err == nil {
				logger.Log.Info("Skipping, target exists",
					"file", base, "target", filepath.Base(dst))
				report.Skipped++
				continue
			}
		}

		logger.Log.Info("Converting", "file", base, "index", i+1, "total", len(sources))

		if err := ConvertFile(src, dst); err != nil {
			cerr := &ConversionError{Path: src, Err: err}
			report.Failed++
			report.Errors = append(report.Errors, cerr)
			logger.Log.Error("Conversion failed", "file", base, "error", err)
			continue
		}

		report.Converted++
		logger.Log.Info("Converted", "file", base, "target", filepath.Base(dst))
	}

	logger.Log.Info("Conversion complete",
		"converted", report.Converted,
		"skipped", report.Skipped,
		"failed", report.Failed)

	return report, nil
}

// ConvertFile converts a single SafeTensors file into a .ckpt checkpoint.
//
// The checkpoint is written to a temporary file in the target directory and
// renamed into place, so a failed save never leaves a truncated .ckpt behind.
// All loaded tensors are released before returning, success or failure.
func ConvertFile(src, dst string) error {
	reader, err := safetensors.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		_ = reader.Close() // Best effort close
	}()

	stateDict, err := reader.LoadStateDict()
	if err != nil {
		return fmt.Errorf("failed to load tensors: %w", err)
	}
	// The state dict is this job's memory; drop it before the next job runs.
	defer tensor.ReleaseStateDict(stateDict)

	metadata := make(map[string]string)
	for k, v := range reader.Metadata() {
		metadata[k] = v
	}

	tmp := dst + ".tmp"
	if err := writeCheckpoint(tmp, stateDict, metadata); err != nil {
		_ = os.Remove(tmp) // Best effort cleanup
		return err
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}

	return nil
}

// writeCheckpoint serializes the state dict to path as a v2 checkpoint.
func writeCheckpoint(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	writer, err := checkpoint.NewWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}

	if err := writer.WriteStateDictV2(stateDict, "safetensors", metadata); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}

	return nil
}
