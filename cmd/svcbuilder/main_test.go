package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const project = `name: shop
version: 1.0.0
services:
  - name: api
    service_kind: backend
    subdomain: api
orchestrator:
  build:
    command: ["sh", "-c", "exit 0"]
`

func newWorkdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.config.yaml"), []byte(project), 0o600))
	return dir
}

func TestRun_Update(t *testing.T) {
	dir := newWorkdir(t)

	assert.Equal(t, 0, run([]string{"--workdir", dir, "update"}))
	_, err := os.Stat(filepath.Join(dir, "dist/generated/index.ts"))
	assert.NoError(t, err)
}

func TestRun_Build(t *testing.T) {
	dir := newWorkdir(t)
	assert.Equal(t, 0, run([]string{"--workdir", dir, "build", "development"}))
}

func TestRun_InvalidEnvironmentExitsOne(t *testing.T) {
	dir := newWorkdir(t)
	assert.Equal(t, 1, run([]string{"--workdir", dir, "build", "staging"}))
}

func TestRun_UnknownServiceExitsOne(t *testing.T) {
	dir := newWorkdir(t)
	assert.Equal(t, 1, run([]string{"--workdir", dir, "run", "development", "--services", "api,billing"}))
}

func TestRun_MissingConfigExitsOne(t *testing.T) {
	assert.Equal(t, 1, run([]string{"--workdir", t.TempDir(), "update"}))
}

func TestRun_PrepareBuildFailurePropagatesExitCode(t *testing.T) {
	dir := t.TempDir()
	cfg := project + "  prepare:\n    build: [\"sh\", \"-c\", \"exit 3\"]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.config.yaml"), []byte(cfg), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "service.config.yaml"), []byte("server: {}\n"), 0o600))

	assert.Equal(t, 3, run([]string{"--workdir", dir, "prepare", "--build", "development", "--skip-install"}))
	_, err := os.Stat(filepath.Join(dir, "dist/service.config.yaml"))
	assert.True(t, os.IsNotExist(err))
}
