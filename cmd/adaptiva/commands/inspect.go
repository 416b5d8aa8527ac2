package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/panyam/adaptiva/services"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <data file>",
	Short: "Shows the sheets, detected header and column schema of a data file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := loadLocalData(cmd.Context(), cfg, args[0], sheetName)
		if err != nil {
			return err
		}
		t, err := data.Store.Resolve(cmd.Context(), data.Ref)
		if err != nil {
			return err
		}
		schema := services.SummarizeSchema(t)

		out := cmd.OutOrStdout()
		if inspectJSON {
			return writeJSON(out, map[string]any{"upload": data.Upload, "schema": schema})
		}

		fmt.Fprintln(out, data.Upload.Message)
		for _, sh := range data.Upload.SheetInfo {
			keyColor.Fprintf(out, "%s", sh.Name)
			fmt.Fprintf(out, ": %d rows", sh.Rows)
			if sh.Header != nil {
				fmt.Fprintf(out, ", header row %d (confidence %.2f)", sh.Header.HeaderRow, sh.Header.Confidence)
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out)

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "COLUMN\tTYPE\tNULLS\tDISTINCT\tSAMPLE")
		for _, c := range schema.Columns {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", c.Name, c.Type, c.NullCount, c.Cardinality, strings.Join(c.SampleValues, ", "))
		}
		return tw.Flush()
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&sheetName, "sheet", "s", "", "Sheet to summarize (default: first sheet)")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the upload result and schema as JSON")
	AddCommand(inspectCmd)
}

