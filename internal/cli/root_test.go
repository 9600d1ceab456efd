package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mci-report-consolidator/internal/domain"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// isolate moves into an empty directory so no config file or dictionary
// in the working tree is read.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", dir)
	return dir
}

const tumorNormalDoc = `{"subject_id":"PA0001","report_type":"tumor_normal","version":"2.1",
	"percent_tumor":80,"percent_necrosis":5,"disease_group":"CNS","indication_for_study":"Diagnosis",
	"somatic_results":{"variants":[]},"germline_results":{"variants":[]}}`

func writeInput(t *testing.T, root string) string {
	t.Helper()
	in := filepath.Join(root, "in")
	require.NoError(t, os.MkdirAll(in, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "PA0001_tn.json"), []byte(tumorNormalDoc), 0644))
	return in
}

func TestRoot_Consolidates(t *testing.T) {
	root := isolate(t)
	in := writeInput(t, root)
	prefix := filepath.Join(root, "out", "cohort")

	out, err := executeCommand(t,
		"--input-json-dirs", in+","+filepath.Join(root, "missing"),
		"--output-prefix", prefix,
		"--output-type", "JSON",
		"--blank-field-indicator", "NA",
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "1 subjects from 1 files")
	assert.Contains(t, out, prefix+".json")

	data, err := os.ReadFile(prefix + ".json")
	require.NoError(t, err)
	var decoded struct {
		Data map[string]map[string]interface{} `json:"data"`
	}
	require.NoError(t, jsoniter.Unmarshal(data, &decoded))
	assert.Equal(t, "NA", decoded.Data["PA0001"]["TN_Somatic_Tier1"])
	assert.Equal(t, "2.1", decoded.Data["PA0001"]["TN_Version"])

	_, err = os.Stat(prefix + ".csv")
	assert.True(t, os.IsNotExist(err))
}

func TestRoot_ConfigFileAndFlagPrecedence(t *testing.T) {
	root := isolate(t)
	in := writeInput(t, root)
	cfgPath := filepath.Join(root, "mci.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
input:
  dirs: [`+in+`]
output:
  prefix: `+filepath.Join(root, "from-file")+`
  format: csv
logging:
  level: error
`), 0644))

	flagPrefix := filepath.Join(root, "from-flag")
	_, err := executeCommand(t, "--config", cfgPath, "--output-prefix", flagPrefix)
	require.NoError(t, err)

	_, err = os.Stat(flagPrefix + ".csv")
	assert.NoError(t, err)
	_, err = os.Stat(flagPrefix + "_dictionary.csv")
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "from-file.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRoot_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no input", []string{"--output-prefix", "x"}},
		{"bad output type", []string{"--input-json-dirs", "in", "--output-type", "xlsx"}},
		{"missing config file", []string{"--input-json-dirs", "in", "--config", "absent.yaml"}},
		{"missing methylation reference", []string{"--input-json-dirs", "in", "--methylation-reference", "absent.csv", "--log-level", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := executeCommand(t, tt.args...)

			var pe *domain.PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, domain.ErrConfig, pe.Code)
		})
	}
}

func TestRoot_AuditExport(t *testing.T) {
	root := isolate(t)
	in := writeInput(t, root)
	dbPath := filepath.Join(root, "audit.db")

	_, err := executeCommand(t,
		"--input-json-dirs", in,
		"--output-prefix", filepath.Join(root, "out"),
		"--audit-db", dbPath,
		"--log-level", "error",
	)
	require.NoError(t, err)

	out, err := executeCommand(t, "audit", "export", "--audit-db", dbPath, "--log-level", "error")
	require.NoError(t, err)

	var export struct {
		Count int `json:"count"`
		Runs  []struct {
			Status    string        `json:"status"`
			Decisions []interface{} `json:"decisions"`
		} `json:"runs"`
	}
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &export))
	assert.Equal(t, 1, export.Count)
	assert.Equal(t, "COMPLETED", export.Runs[0].Status)
	assert.Len(t, export.Runs[0].Decisions, 1)
}

func TestRoot_AuditExportMissingDatabase(t *testing.T) {
	root := isolate(t)
	_, err := executeCommand(t, "audit", "export", "--audit-db", filepath.Join(root, "absent.db"))

	var pe *domain.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.ErrConfig, pe.Code)
}

func TestRoot_Version(t *testing.T) {
	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}
