package commands

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/panyam/adaptiva/charts"
	"github.com/panyam/adaptiva/viz"
)

var (
	renderSVG bool
	outFile   string
)

var renderCmd = &cobra.Command{
	Use:   "render <spec.json>",
	Short: "Renders a chart spec into figure JSON or an SVG preview",
	Long: `The render command filters, aggregates and maps a local data file onto a
figure following the spec. It writes figure JSON by default, or an SVG
preview with --svg.

Example:
  adaptiva render -d sales.csv revenue.json
  adaptiva render -d sales.xlsx -s Q1 revenue.json --svg -o revenue.svg`,
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
		fig, err := charts.NewRenderer(data.Store, cfg.Limits).Render(cmd.Context(), spec)
		if err != nil {
			var re *charts.RenderError
			if errors.As(err, &re) {
				printIssues(cmd.ErrOrStderr(), charts.ValidationResult{Errors: re.Issues})
			}
			return err
		}

		out := cmd.OutOrStdout()
		if outFile != "" {
			f, err := os.Create(outFile)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		if !renderSVG {
			return writeJSON(out, fig)
		}
		svg, err := viz.RenderSVG(fig, nil)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, svg)
		return err
	},
}

func init() {
	addDataFlags(renderCmd)
	renderCmd.Flags().BoolVar(&renderSVG, "svg", false, "Write an SVG preview instead of figure JSON")
	renderCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write to this file instead of stdout")
	AddCommand(renderCmd)
}
