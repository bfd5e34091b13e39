package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("AGENDA_CONFIG_PATH", "")
	t.Setenv("OPENAI_API_KEY", "")
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	return home
}

func TestDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(Flags("agenda"), []string{"--env", filepath.Join(home, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".agenda"), cfg.DataDir)
	assert.Equal(t, filepath.Join(home, ".agenda", "alarm.mp3"), cfg.AlarmSound)
	assert.Equal(t, 9, cfg.TaskQuota)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"salir", "cancelar"}, cfg.EscapeWords)
	assert.True(t, cfg.Rollover)
	assert.False(t, cfg.Loop)
	assert.Equal(t, "info", cfg.Log)
}

func TestPrecedence(t *testing.T) {
	home := isolate(t)

	cfgDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, ".agenda.yaml"), []byte(
		"task_quota: 4\nvoice: es-419\nlog: debug\nalarm_volume: 80\n"), 0o644))
	t.Setenv("AGENDA_CONFIG_PATH", cfgDir)
	t.Setenv("AGENDA_VOICE", "es+f3")

	env := filepath.Join(home, ".env")
	require.NoError(t, os.WriteFile(env, []byte("OPENAI_API_KEY=sk-test\n"), 0o644))

	cfg, err := Load(Flags("agenda"), []string{
		"-e", env,
		"--task-quota", "6",
		"--escape-word", "basta,para",
		"--poll-interval", "250ms",
		"--alert-timeout", "90s",
		"--data-dir", "~/agenda",
		"--loop",
	})
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.TaskQuota, "flag beats config file")
	assert.Equal(t, "es+f3", cfg.Voice, "env beats config file")
	assert.Equal(t, "debug", cfg.Log)
	assert.Equal(t, 80, cfg.AlarmVolume)
	assert.Equal(t, "sk-test", cfg.OpenAIKey)
	assert.Equal(t, []string{"basta", "para"}, cfg.EscapeWords)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 90*time.Second, cfg.AlertTimeout)
	assert.Equal(t, filepath.Join(home, "agenda"), cfg.DataDir)
	assert.True(t, cfg.Loop)
}

func TestValidation(t *testing.T) {
	home := isolate(t)
	noEnv := filepath.Join(home, "none.env")

	_, err := Load(Flags("agenda"), []string{"-e", noEnv, "--alarm-volume", "200"})
	assert.ErrorContains(t, err, "alarm_volume")

	_, err = Load(Flags("agenda"), []string{"-e", noEnv, "--alert-timeout=-1s"})
	assert.ErrorContains(t, err, "alert_timeout")

	_, err = Load(Flags("agenda"), []string{"-e", noEnv, "--log", "loud"})
	assert.ErrorContains(t, err, "log level")

	_, err = Load(Flags("agenda"), []string{"--no-such-flag"})
	assert.Error(t, err)
}
