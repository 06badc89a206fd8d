package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/askcel/schema"
)

const salesCSV = `Region,Product,Units,Revenue
North,Desk,3,300
South,Lamp,1,40
North,Chair,5,250
East,Desk,,200
`

// run executes the CLI without API keys, so questions use basic mode.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "ASKCEL_PROVIDER", "ASKCEL_ENV", "ASKCEL_DATA_DIR", "ASKCEL_REFINE"} {
		t.Setenv(key, "")
	}
	t.Setenv("ASKCEL_LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSales(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "askcel "+version+"\n", out)
}

func TestDiscover(t *testing.T) {
	file := writeSales(t)

	out, err := run(t, "discover", "--file", file)
	require.NoError(t, err)
	var cfg schema.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Contains(t, cfg.MeasureKeys(), "revenue")
	assert.Contains(t, cfg.DimensionKeys(), "region")

	out, err = run(t, "discover", "--file", file, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "dimensions:")

	_, err = run(t, "discover", "--file", file, "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, err = run(t, "discover", "--file", file, "--refine")
	assert.ErrorContains(t, err, "--refine needs")

	_, err = run(t, "discover")
	assert.Error(t, err)
}

func TestQueryText(t *testing.T) {
	out, err := run(t, "query", "--file", writeSales(t), "-q", "count", "-q", "show average", "--format", "text", "--concurrency", "2")
	require.NoError(t, err)
	assert.Equal(t, "Q: count\nThe dataset has 4 rows.\n\nQ: show average\nMean of 2 numeric columns.\n", out)
}

func TestQueryJSON(t *testing.T) {
	out, err := run(t, "query", "--file", writeSales(t), "-q", "sum")
	require.NoError(t, err)
	var got cliOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "sum", got.Query)
	assert.Equal(t, "basic", string(got.Mode))
	require.NotNil(t, got.Result)
	assert.Equal(t, "Sum", got.Result.Title)
}

func TestQueryRefineFromEnvKeepsBasicMode(t *testing.T) {
	file := writeSales(t)
	out, err := run(t, "query", "--file", file, "-q", "count", "--format", "text")
	require.NoError(t, err)

	t.Setenv("ASKCEL_REFINE", "true")
	cmd := newRootCmd()
	var refined bytes.Buffer
	cmd.SetOut(&refined)
	cmd.SetArgs([]string{"query", "--file", file, "-q", "count", "--format", "text"})
	require.NoError(t, cmd.Execute(), "without a key the env default is ignored")
	assert.Equal(t, out, refined.String())
}

func TestQueryCSV(t *testing.T) {
	out, err := run(t, "query", "--file", writeSales(t), "-q", "sum", "--format", "csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Column,Sum\n"), out)
}

func TestQueryFiles(t *testing.T) {
	file := writeSales(t)
	dir := t.TempDir()

	pdf := filepath.Join(dir, "report.pdf")
	_, err := run(t, "query", "--file", file, "-q", "describe", "--format", "pdf", "--out", pdf)
	require.NoError(t, err)
	b, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))

	xlsx := filepath.Join(dir, "report.xlsx")
	_, err = run(t, "query", "--file", file, "-q", "median", "--format", "xlsx", "--out", xlsx)
	require.NoError(t, err)
	b, err = os.ReadFile(xlsx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("PK")))
}

func TestQueryErrors(t *testing.T) {
	file := writeSales(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no question", []string{"query", "--file", file}, "at least one -q"},
		{"two for pdf", []string{"query", "--file", file, "-q", "sum", "-q", "count", "--format", "pdf"}, "single question"},
		{"bad format", []string{"query", "--file", file, "-q", "sum", "--format", "html"}, "unknown format"},
		{"unknown column", []string{"query", "--file", file, "-q", "unique colours"}, "basic mode"},
		{"missing file", []string{"query", "--file", "nope.csv", "-q", "sum"}, "failed to read file"},
		{"refine without key", []string{"query", "--file", file, "-q", "sum", "--refine"}, "--refine needs"},
		{"bad schema", []string{"query", "--file", file, "-q", "sum", "--schema", "nope.yaml"}, "read schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
