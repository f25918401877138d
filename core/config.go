package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		DisableReqLogs            bool
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string // file path when Engine is sqlite
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// FreemiumConfig caps what a school on the free plan may create.
	FreemiumConfig struct {
		MaxStudents int
		MaxClasses  int
	}

	NotificationConfig struct {
		DefaultTTL    time.Duration
		PurgeInterval time.Duration
	}

	BulletinConfig struct {
		Secret        string
		VerifyBaseURL string
	}

	Config struct {
		AppName                   string
		Build                     string
		Env                       string // DEV (default) | TEST | QA | PROD
		Debug                     bool
		TestMode                  bool
		WorkDir                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		PasswordResetTimeoutDelta time.Duration
		SendgridApiKey            string
		RollbarToken              string
		LogFile                   string

		Server       ServerConfig
		Database     DatabaseConfig
		Freemium     FreemiumConfig
		Notification NotificationConfig
		Bulletin     BulletinConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the configuration of the current ENV from the environment,
// optionally seeded by a config/.env.<env> file.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("appName", "Educafric")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("secretKey", "x7&u3!nq$0rk#e8f^2v@l9s*c1m+za6w-educafric-dev")
	v.SetDefault("frontendBaseURL", "http://localhost:5000")
	v.SetDefault("defaultFromName", "Educafric")
	v.SetDefault("defaultFromEmail", "noreply@educafric.com")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("logFile", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverDisableReqLogs", env == "TEST")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 30*24*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "educafric")
	v.SetDefault("dbUser", "educafric")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("freemiumMaxStudents", 50)
	v.SetDefault("freemiumMaxClasses", 3)

	v.SetDefault("notificationTTL", 30*24*time.Hour)
	v.SetDefault("notificationPurgeInterval", time.Hour)

	v.SetDefault("bulletinSecret", "")
	v.SetDefault("bulletinVerifyBaseURL", "")

	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:                   v.GetString("appName"),
		Build:                     v.GetString("build"),
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		WorkDir:                   wd,
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail:          mail.Address{Name: v.GetString("defaultFromName"), Address: v.GetString("defaultFromEmail")},
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		LogFile:                   v.GetString("logFile"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Address:                   v.GetString("serverAddress"),
			DebugHost:                 v.GetString("serverDebugHost"),
			DisableReqLogs:            v.GetBool("serverDisableReqLogs"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Freemium: FreemiumConfig{
			MaxStudents: v.GetInt("freemiumMaxStudents"),
			MaxClasses:  v.GetInt("freemiumMaxClasses"),
		},
		Notification: NotificationConfig{
			DefaultTTL:    v.GetDuration("notificationTTL"),
			PurgeInterval: v.GetDuration("notificationPurgeInterval"),
		},
		Bulletin: BulletinConfig{
			Secret:        v.GetString("bulletinSecret"),
			VerifyBaseURL: v.GetString("bulletinVerifyBaseURL"),
		},
	}
	if conf.Bulletin.Secret == "" {
		conf.Bulletin.Secret = conf.SecretKey
	}
	if conf.Bulletin.VerifyBaseURL == "" {
		conf.Bulletin.VerifyBaseURL = conf.FrontendBaseURL + "/bulletins/verify"
	}
	return conf
}
