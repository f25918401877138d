package main

import (
	"github.com/pressly/goose/v3"

	appfs "github.com/simonmuehling/educafric-app-sub019/fs"
	"github.com/simonmuehling/educafric-app-sub019/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	if err := database.PrepareGoose(cli.db); err != nil {
		return err
	}
	// PrepareGoose silences goose, the CLI wants its output
	goose.SetLogger(cli.std)
	return gooseRunFunc(args[0], cli.db.DB, appfs.MigrationsDir, args[1:]...)
}
