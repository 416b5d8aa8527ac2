package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = "month,region,revenue\nJan,East,100\nJan,West,80\nFeb,East,120\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the root command with fresh flag values and returns stdout
// and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	configFile, dataFile, sheetName, outFile = "", "", "", ""
	renderSVG, inspectJSON = false, false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "sales.csv", salesCSV)

	t.Run("Success Case", func(t *testing.T) {
		spec := writeFile(t, dir, "ok.json", `{"chart_type": "bar", "x_axis": {"column": "month"}, "y_axis": {"columns": ["revenue"]}}`)
		out, _, err := run(t, "validate", "-d", data, spec)
		require.NoError(t, err)
		assert.Contains(t, out, "valid bar chart")
	})

	t.Run("Unknown Column", func(t *testing.T) {
		spec := writeFile(t, dir, "bad.json", `{"chart_type": "bar", "x_axis": {"column": "quarter"}, "y_axis": {"columns": ["revenue"]}}`)
		out, _, err := run(t, "validate", "-d", data, spec)
		assert.ErrorIs(t, err, errInvalidSpec)
		assert.Contains(t, out, "error   x_axis.column [column_not_found]")
	})

	t.Run("Malformed Spec", func(t *testing.T) {
		spec := writeFile(t, dir, "broken.json", `{"chart_type": "donut", "x_axis": {"column": "month"}}`)
		_, _, err := run(t, "validate", "-d", data, spec)
		assert.ErrorContains(t, err, "invalid chart spec")
	})
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "sales.csv", salesCSV)
	spec := writeFile(t, dir, "pie.json", `{"chart_type": "pie", "x_axis": {"column": "region"}, "visual": {"title": "By region"}}`)

	t.Run("Figure JSON", func(t *testing.T) {
		out, _, err := run(t, "render", "-d", data, spec)
		require.NoError(t, err)
		assert.Contains(t, out, `"type": "pie"`)
		assert.Contains(t, out, `"title": "By region"`)
	})

	t.Run("SVG To File", func(t *testing.T) {
		target := filepath.Join(dir, "pie.svg")
		_, _, err := run(t, "render", "-d", data, spec, "--svg", "-o", target)
		require.NoError(t, err)
		svg, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Contains(t, string(svg), "<svg")
		assert.Contains(t, string(svg), "By region")
	})

	t.Run("Rejected Spec Prints Issues", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.json", `{"chart_type": "line", "x_axis": {"column": "month"}, "y_axis": {"columns": ["profit"]}}`)
		_, stderr, err := run(t, "render", "-d", data, bad)
		require.Error(t, err)
		assert.Contains(t, stderr, "column_not_found")
	})
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "sales.csv", salesCSV)

	t.Run("Table", func(t *testing.T) {
		out, _, err := run(t, "inspect", data)
		require.NoError(t, err)
		assert.Contains(t, out, "Loaded 3 rows and 3 columns from sales.csv")
		assert.Contains(t, out, "COLUMN")
		assert.Regexp(t, `revenue\s+numeric\s+0\s+3`, out)
	})

	t.Run("JSON", func(t *testing.T) {
		out, _, err := run(t, "inspect", data, "--json")
		require.NoError(t, err)
		assert.Contains(t, out, `"row_count": 3`)
	})

	t.Run("Missing File", func(t *testing.T) {
		_, _, err := run(t, "inspect", filepath.Join(dir, "nope.csv"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
