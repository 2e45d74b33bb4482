package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/network"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunDemo(t *testing.T) {
	cfg := DefaultDemoConfig()
	cfg.Steps = 40
	cfg.HeadLRScale = 0.5
	cfg.Output = filepath.Join(t.TempDir(), "demo.sqnt")

	result, err := runDemo(cfg)
	require.NoError(t, err)
	assert.Less(t, result.FinalLoss, result.InitialLoss)
	assert.Equal(t, "[C3,1 (Ft8 Fr8) Fl1]", result.Net.Spec())

	lr := result.Net.LayerLearningRatePtr("1:0")
	require.NotNil(t, lr)
	assert.InDelta(t, 0.001, *lr, 1e-9)
	out := result.Net.LayerLearningRatePtr("2")
	require.NotNil(t, out)
	assert.InDelta(t, 0.002, *out, 1e-9)

	loaded, header, err := network.Load(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, "40", header.Metadata["steps"])
	assert.Equal(t, result.Net.Spec(), loaded.Spec())
}

func TestRunDemo_InvalidConfig(t *testing.T) {
	cfg := DefaultDemoConfig()
	cfg.Width = 0
	_, err := runDemo(cfg)
	assert.Error(t, err)

	cfg = DefaultDemoConfig()
	cfg.HalfX = -1
	_, err = runDemo(cfg)
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "seqnet "+version+"\n", out)

	path := filepath.Join(t.TempDir(), "cli.sqnt")
	out, err = execute(t, "demo", "--steps", "5", "--hidden", "2", "--width", "8", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[C3,1 (Ft2 Fr2) Fl1]")
	assert.Contains(t, out, "saved:    "+path)

	out, err = execute(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "name:     demo")
	assert.Contains(t, out, "type:     Series")
	assert.Contains(t, out, "meta:     steps=5")

	out, err = execute(t, "layers", path)
	require.NoError(t, err)
	for _, want := range []string{"window", "tanh", "relu", "out", "1:1", "Fl1"} {
		assert.Contains(t, out, want)
	}

	_, err = execute(t, "inspect", filepath.Join(t.TempDir(), "missing.sqnt"))
	assert.Error(t, err)
}

func TestDemoConfigFile(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "demo.yaml")
	require.NoError(t, os.WriteFile(config, []byte("steps: 3\nhidden: 3\nhalf-x: 2\n"), 0o600))

	out, err := execute(t, "demo", "--config", config)
	require.NoError(t, err)
	assert.Contains(t, out, "[C5,1 (Ft3 Fr3) Fl1]")
}

func TestDemoEnvironment(t *testing.T) {
	t.Setenv("SEQNET_HIDDEN", "4")
	t.Setenv("SEQNET_STEPS", "2")

	out, err := execute(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "(Ft4 Fr4)")
}
