package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/noot-app/recipebox/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Version(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "long flag", args: []string{"--version"}},
		{name: "short flag", args: []string{"-v"}},
		{name: "wins over other modes", args: []string{"--version", "--stdio"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, version.String()+"\n", buf.String())
		})
	}
}

func TestRootCmdHelp(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	output := buf.String()

	assert.Contains(t, output, "compose, edit and save recipes")
	assert.Contains(t, output, "recipebox [flags]")
	assert.Contains(t, output, "--stdio")
	assert.Contains(t, output, "--fetch-db")
	assert.Contains(t, output, "-v, --version")
}

func TestRootCmd_UnknownFlag(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--no-such-flag"})

	assert.Error(t, cmd.Execute())
}

func TestRootCmd_FetchDBFailure(t *testing.T) {
	datasetSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer datasetSrv.Close()

	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("PARQUET_URL", datasetSrv.URL+"/food.parquet")
	t.Setenv("BACKEND_RETRY_MAX_ELAPSED", "0")
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--fetch-db"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to download dataset")
}
