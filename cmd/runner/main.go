package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

// rootCmd 纸面撮合的 Avellaneda-Stoikov 网格做市进程
var rootCmd = &cobra.Command{
	Use:   "ag-grid",
	Short: "Avellaneda-Stoikov grid market maker (paper engine)",
	Long: `ag-grid calibrates Avellaneda-Stoikov parameters from Gate.io spot candles,
then drives a two-legged (long/short) grid against an in-memory paper engine
fed by the Gate.io ticker stream.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "configs/config.yaml", "配置文件路径")
	rootCmd.AddCommand(runCmd, calibrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
