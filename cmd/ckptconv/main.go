// Package main is the entry point for the ckptconv CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/born-ml/ckptconv/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the ckptconv CLI.
var rootCmd = &cobra.Command{
	Use:   "ckptconv",
	Short: "Convert SafeTensors weight files to .ckpt checkpoints",
	Long: `ckptconv batch-converts model weight files from the SafeTensors
container format into .ckpt checkpoint files.

The convert subcommand scans a directory for *.safetensors files and writes
a sibling .ckpt for each one. Already-converted files are skipped unless
--force is given. The inspect subcommand prints the tensor table of a
single weight file in either format.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(viper.GetString("log-level"), viper.GetString("log-format"))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./ckptconv.yaml or ~/.config/ckptconv/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")

	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ckptconv")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ckptconv"))
		}
	}

	viper.SetEnvPrefix("CKPTCONV")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
