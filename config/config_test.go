package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalgonoise/bansuri/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "scripts.json")

	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestLoad_NotFound(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, config.ErrNotFound)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)

	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrMalformedJSON)
}

func TestLoad_ValidationRule(t *testing.T) {
	path := writeConfig(t, `{
		"version": "1",
		"scripts": [ { "name": "no-schedule", "command": "true" } ]
	}`)

	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrInvalidRule)
}

func TestLoad_KebabAndWhereAlias(t *testing.T) {
	path := writeConfig(t, `{
		"version": "1",
		"notify_command": "mail -s alert",
		"scripts": [
			{
				"name": "A",
				"command": "echo hi",
				"where": "/tmp",
				"schedule-cron": "* * * * *",
				"max-attempts": 3,
				"success-codes": [0, 2]
			}
		]
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Scripts, 1)

	d := cfg.Scripts[0]
	assert.Equal(t, "A", d.Name)
	assert.Equal(t, "/tmp", d.WorkingDirectory)
	assert.Equal(t, "* * * * *", d.ScheduleCron)
	assert.Equal(t, 3, d.MaxAttempts)
	assert.Equal(t, []int{0, 2}, d.SuccessCodes)
	assert.Equal(t, "mail -s alert", cfg.NotifyCommand)
}

func TestLoad_DependsOnSatisfiesRule(t *testing.T) {
	path := writeConfig(t, `{
		"version": "1",
		"scripts": [ { "name": "B", "command": "true", "depends_on": ["A"] } ]
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Scripts, 1)
	assert.Equal(t, []string{"A"}, cfg.Scripts[0].DependsOn)
}

func TestLoad_TimerAndDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"version": "1",
		"scripts": [ { "name": "C", "command": "true", "timer": "30s" } ]
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	d := cfg.Scripts[0]
	assert.True(t, d.HasTimer)
	assert.Equal(t, 30, d.TimerSeconds)
	assert.Equal(t, 1, d.Times)
	assert.Equal(t, 1, d.MaxAttempts)
	assert.Equal(t, config.OnFailStop, d.OnFail)
	assert.Equal(t, []int{0}, d.SuccessCodes)
	assert.Equal(t, "combined", d.Stderr)
}
