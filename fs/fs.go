// Package appfs embeds the files the binaries ship with: SQL migrations, email templates and assets.
package appfs

import "embed"

const (
	MigrationsDir     = "migrations"
	OfflineMigrations = "offline"
	EmailTemplatesDir = "templates/email"
	CommonPasswords   = "assets/common-passwords.txt"
)

//go:embed migrations/*.sql offline/*.sql templates/email/* assets/*
var FS embed.FS
