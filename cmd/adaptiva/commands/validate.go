package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panyam/adaptiva/charts"
)

var errInvalidSpec = errors.New("chart spec is not valid for this data")

var validateCmd = &cobra.Command{
	Use:   "validate <spec.json>",
	Short: "Checks a chart spec against a data file",
	Long: `The validate command checks a chart spec's columns, required fields and
column types against a local data file. It prints every error and warning
and exits non-zero when the spec would be rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := loadLocalData(cmd.Context(), cfg, dataFile, sheetName)
		if err != nil {
			return err
		}
		spec, err := readSpecFile(args[0], data.Ref)
		if err != nil {
			return err
		}
		res := charts.NewRenderer(data.Store, cfg.Limits).Validate(cmd.Context(), spec)
		out := cmd.OutOrStdout()
		printIssues(out, res)
		if !res.Valid {
			return errInvalidSpec
		}
		okColor.Fprint(out, "valid")
		fmt.Fprintf(out, " %s chart with %d warning(s)\n", spec.ChartType, len(res.Warnings))
		return nil
	},
}

func init() {
	addDataFlags(validateCmd)
	AddCommand(validateCmd)
}
