package client_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonmuehling/educafric-app-sub019/client"
	"github.com/simonmuehling/educafric-app-sub019/client/offlinedb"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		conf, err := client.NewConfig(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000", conf.ServerURL)
		assert.Equal(t, offlinedb.DefaultPath, conf.DBPath)
		assert.Equal(t, 30*time.Second, conf.ProbeInterval)
		assert.False(t, conf.Offline)
	})

	t.Run("env and file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: https://school.example/\nschool: s1\nprobe-interval: 5s\n"), 0o600))
		t.Setenv("EDUCAFRIC_SCHOOL", "s2")
		t.Setenv("EDUCAFRIC_LOG_FILE", "/tmp/offline.log")

		conf, err := client.NewConfig(viper.New(), path)
		require.NoError(t, err)
		assert.Equal(t, "https://school.example", conf.ServerURL)
		assert.Equal(t, "s2", conf.SchoolID)
		assert.Equal(t, 5*time.Second, conf.ProbeInterval)
		assert.Equal(t, "/tmp/offline.log", conf.Core().LogFile)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := client.NewConfig(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
