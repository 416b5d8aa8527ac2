package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	dataFile   string
	sheetName  string
)

var rootCmd = &cobra.Command{
	Use:   "adaptiva",
	Short: "Adaptiva turns tabular data and chart specs into chart figures",
	Long: `Adaptiva validates declarative chart specs against CSV, Excel and Parquet
data, renders them into figure JSON or SVG previews, and serves the same
operations over HTTP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("ADAPTIVA_CONFIG"), "Optional YAML config file")
}

// AddCommand allows adding subcommands from other files.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// addDataFlags registers the flags shared by commands that read a local file.
func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "CSV, Excel or Parquet file the spec refers to")
	cmd.Flags().StringVarP(&sheetName, "sheet", "s", "", "Sheet to use (default: first sheet)")
	cmd.MarkFlagRequired("data")
}
