package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"tradeprobe/pkg/config"
	"tradeprobe/pkg/exchangetest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	stdout, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tradeprobe dev\n", stdout)
}

func TestRunWritesReport(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{}.Handler())
	report := filepath.Join(t.TempDir(), "report.json")

	stdout, err := executeCLI(t, "run",
		"--server", srv.URL,
		"--tokens", "alpha,beta",
		"--duration", "300ms",
		"--stagger", "1ms",
		"--close-grace", "100ms",
		"--report", report,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "sessions connected 2/2")

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	var decoded struct {
		Connected int `json:"connected"`
		Sessions  []struct {
			Team string `json:"team"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 2, decoded.Connected)
	assert.Len(t, decoded.Sessions, 2)
}

func TestRunFromConfigFile(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{}.Handler())
	path := filepath.Join(t.TempDir(), "tradeprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server: "+srv.URL+"\n"+
			"stagger: 1ms\n"+
			"close_grace: 100ms\n"+
			"teams:\n"+
			"  - token: gamma\n"+
			"    strategy: trader\n"+
			"phases:\n"+
			"  - name: strategy\n"+
			"    duration: 100ms\n"), 0o644))

	stdout, err := executeCLI(t, "run", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "sessions connected 1/1")
	assert.Contains(t, stdout, "team-gamma [Trader]")
}

func TestRunExitStatus(t *testing.T) {
	srv := exchangetest.NewServer(t, exchangetest.Behavior{}.Handler())

	_, err := executeCLI(t, "run", "--server", srv.URL, "--duration", "100ms")
	assert.True(t, errors.Is(err, config.ErrNoTokens), "%v", err)

	stdout, err := executeCLI(t, "run",
		"--server", srv.URL,
		"--tokens", "bad-1",
		"--duration", "100ms",
		"--close-grace", "100ms",
	)
	assert.True(t, errors.Is(err, ErrNoSessions), "%v", err)
	assert.Contains(t, stdout, "excluded bad-1")
}

func TestProbe(t *testing.T) {
	ok := exchangetest.NewServer(t, exchangetest.Behavior{}.Handler())
	stdout, err := executeCLI(t, "probe", "--server", ok.URL, "--token", "alpha", "--timeout", "500ms")
	require.NoError(t, err)
	assert.Contains(t, stdout, "conformance probe for team-alpha")
	assert.NotContains(t, stdout, "FAIL")

	rejecting := exchangetest.NewServer(t, exchangetest.Behavior{RejectOrders: true}.Handler())
	stdout, err = executeCLI(t, "probe", "--server", rejecting.URL, "--token", "alpha", "--timeout", "500ms")
	assert.True(t, errors.Is(err, ErrProbeFailed), "%v", err)
	assert.Contains(t, stdout, "FAIL")

	_, err = executeCLI(t, "probe", "--server", ok.URL)
	assert.True(t, errors.Is(err, config.ErrNoTokens), "%v", err)
}
