package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/born-ml/ckptconv/internal/convert"
	"github.com/born-ml/ckptconv/internal/logger"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Batch-convert *.safetensors files in a directory to .ckpt",
	Long: `Convert scans the base directory (non-recursive) for *.safetensors
files and writes a .ckpt checkpoint next to each one, same base name.

Files whose .ckpt target already exists are skipped; pass --force to
re-convert and overwrite them. A file that fails to load or save is
reported and the batch continues with the next file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := convert.Options{
			Dir:          viper.GetString("base-path"),
			SkipExisting: !viper.GetBool("force"),
		}

		_, err := convert.Run(opts)
		if errors.Is(err, convert.ErrPathNotFound) {
			// Handled outcome, not a fault: report and return cleanly.
			logger.Log.Error("Base path does not exist", "path", opts.Dir)
			return nil
		}
		return err
	},
}

func init() {
	convertCmd.Flags().String("base-path", "", "directory containing .safetensors files (required)")
	convertCmd.Flags().Bool("force", false, "overwrite existing .ckpt files")
	_ = convertCmd.MarkFlagRequired("base-path")

	_ = viper.BindPFlag("base-path", convertCmd.Flags().Lookup("base-path"))
	_ = viper.BindPFlag("force", convertCmd.Flags().Lookup("force"))

	rootCmd.AddCommand(convertCmd)
}
