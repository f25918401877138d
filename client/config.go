// Package client holds the configuration shared by the offline client commands.
package client

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/simonmuehling/educafric-app-sub019/client/offlinedb"
	"github.com/simonmuehling/educafric-app-sub019/core"
)

const EnvPrefix = "EDUCAFRIC"

type Config struct {
	ServerURL     string
	Token         string
	SchoolID      string
	DBPath        string
	ProbeInterval time.Duration
	LogFile       string
	Offline       bool // never reach the server
}

// NewConfig reads the client configuration from v. Keys set by bound flags win over the
// EDUCAFRIC_* environment, which wins over the optional configFile, then the defaults.
func NewConfig(v *viper.Viper, configFile string) (Config, error) {
	v.SetDefault("server", "http://localhost:8000")
	v.SetDefault("token", "")
	v.SetDefault("school", "")
	v.SetDefault("db", offlinedb.DefaultPath)
	v.SetDefault("probe-interval", 30*time.Second)
	v.SetDefault("log-file", "")
	v.SetDefault("offline", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading config %s", configFile)
		}
	}

	conf := Config{
		ServerURL:     strings.TrimRight(v.GetString("server"), "/"),
		Token:         v.GetString("token"),
		SchoolID:      v.GetString("school"),
		DBPath:        v.GetString("db"),
		ProbeInterval: v.GetDuration("probe-interval"),
		LogFile:       v.GetString("log-file"),
		Offline:       v.GetBool("offline"),
	}
	if conf.ServerURL == "" {
		return Config{}, errors.New("server URL is required")
	}
	if conf.DBPath == "" {
		conf.DBPath = offlinedb.DefaultPath
	}
	return conf, nil
}

// Core returns the core configuration the shared loggers expect.
func (c Config) Core() *core.Config {
	return &core.Config{
		AppName: "Educafric Offline",
		Env:     "CLIENT",
		LogFile: c.LogFile,
	}
}
