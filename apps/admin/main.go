package main

import (
	"fmt"
	"os"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/notification"
	logsvc "github.com/simonmuehling/educafric-app-sub019/services/logger"
	"github.com/simonmuehling/educafric-app-sub019/storage/database"
	sqlxrepos "github.com/simonmuehling/educafric-app-sub019/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	std := logsvc.NewStdLogger("ADMIN : ", conf)
	rlogger := logsvc.NewRollbarLogger(std, conf)
	rlogger.Enable(false)
	logger = rlogger

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(db.Ping())

	notifRepo := sqlxrepos.NewNotificationRepository(db)

	// start CLI
	cli := commandLine{
		db:       db,
		std:      std,
		usrRepo:  sqlxrepos.NewUserRepository(db),
		schRepo:  sqlxrepos.NewSchoolRepository(db),
		notifSvc: notification.NewService(notifRepo, logger, conf),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
