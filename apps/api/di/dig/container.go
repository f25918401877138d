package dig_container

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/simonmuehling/educafric-app-sub019/apps/api/echo"
	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/academic"
	"github.com/simonmuehling/educafric-app-sub019/core/bulkimport"
	"github.com/simonmuehling/educafric-app-sub019/core/notification"
	"github.com/simonmuehling/educafric-app-sub019/core/school"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
	emailsvc "github.com/simonmuehling/educafric-app-sub019/services/email"
	logsvc "github.com/simonmuehling/educafric-app-sub019/services/logger"
	"github.com/simonmuehling/educafric-app-sub019/storage/database"
	sqlxrepos "github.com/simonmuehling/educafric-app-sub019/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger("API : ", conf), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger("DB : ", conf), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newUserRepo(exec core.DBExecutor) user.Repository {
	return sqlxrepos.NewUserRepository(exec)
}

func newSchoolRepo(exec core.DBExecutor) school.Repository {
	return sqlxrepos.NewSchoolRepository(exec)
}

func newRecordRepo(exec core.DBExecutor) academic.Repository {
	return sqlxrepos.NewRecordRepository(exec)
}

func newNotificationRepo(exec core.DBExecutor) notification.Repository {
	return sqlxrepos.NewNotificationRepository(exec)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newNotificationService pushes notifications to the open websockets and mails the urgent ones.
func newNotificationService(
	repo notification.Repository,
	logger core.Logger,
	conf *core.Config,
	hub *echoapi.Hub,
	users user.Service,
	schools school.Service,
	mailSvc core.EmailService,
) notification.Service {
	return notification.NewService(repo, logger, conf,
		hub,
		notification.NewEmailDispatcher(users, schools, mailSvc, conf),
	)
}

func newImporter(svc academic.Service, logger core.Logger) *bulkimport.Importer {
	return bulkimport.NewImporter(svc, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewUniversalTranslator))

	must(provideRepositories(c))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(func(repo academic.Repository, schools school.Service, conf *core.Config) academic.Service {
		return academic.NewService(repo, schools, conf)
	}))
	must(c.Provide(echoapi.NewHub))
	must(c.Provide(newNotificationService))
	must(c.Provide(newImporter))

	must(c.Provide(echoapi.NewServer))

	return c
}

// provideRepositories registers the sqlx repositories under their core interfaces.
func provideRepositories(c *dig.Container) error {
	for _, ctor := range []interface{}{newUserRepo, newSchoolRepo, newRecordRepo, newNotificationRepo} {
		if err := c.Provide(ctor); err != nil {
			return err
		}
	}
	return nil
}

// must panics if a constructor cannot be provided, the container is broken
func must(err error) {
	if err != nil {
		panic(errors.Wrap(err, "failed to provide dependency"))
	}
}
