package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cxltrafficgen",
	Short: "Simulate a CXL memory expander built from a DRAM cache and flash.",
	Long: `cxltrafficgen simulates a CXL memory expander that serves host ` +
		`requests from a DRAM cache in front of a flash array. It can run ` +
		`synthetic workloads and encode CXL flits.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"device configuration file (yaml, json or toml)")
}
