package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(body), 0o644))
}

func TestLoad_ReadsFileAndDurations(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "server:\n  port: 9000\ntyping:\n  ttl: 4s\nbroken:\n  ttl: soon\n")

	v, err := Load(dir, "app")
	require.NoError(t, err)

	assert.Equal(t, 9000, v.GetInt("server.port"))
	assert.Equal(t, 4*time.Second, ParseDuration(v, "typing.ttl", time.Second))
	assert.Equal(t, time.Second, ParseDuration(v, "broken.ttl", time.Second))
	assert.Equal(t, time.Minute, ParseDuration(v, "missing.ttl", time.Minute))
}

func TestLoad_MissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "7000")

	v, err := Load(t.TempDir(), "absent")
	require.NoError(t, err)
	assert.Equal(t, 7000, v.GetInt("server.port"))
}

func TestWatch_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "log:\n  level: info\n")

	v, err := Load(dir, "app")
	require.NoError(t, err)

	levels := make(chan string, 4)
	Watch(v, func(v *viper.Viper) {
		levels <- v.GetString("log.level")
	})

	// Give the watcher time to register before the write.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "log:\n  level: debug\n")

	require.Eventually(t, func() bool {
		for {
			select {
			case l := <-levels:
				if l == "debug" {
					return true
				}
			default:
				return false
			}
		}
	}, 3*time.Second, 20*time.Millisecond)
}
