package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/academic"
	"github.com/simonmuehling/educafric-app-sub019/core/bulkimport"
	"github.com/simonmuehling/educafric-app-sub019/core/notification"
	"github.com/simonmuehling/educafric-app-sub019/core/school"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
)

type (
	// Deps holds everything the API needs, it is filled by the dig container or by hand in tests.
	Deps struct {
		dig.In

		Conf        *core.Config
		Logger      core.Logger
		DB          *sqlx.DB `optional:"true"`
		Validate    *validator.Validate
		Uni         *ut.UniversalTranslator
		UserSvc     user.Service
		SchoolSvc   school.Service
		AcademicSvc academic.Service
		NotifSvc    notification.Service
		Importer    *bulkimport.Importer
		Hub         *Hub
	}

	Server struct {
		app      *echo.Echo
		addr     string
		hub      *Hub
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps Deps) *Server {
	s := &Server{
		app:      echo.New(),
		addr:     deps.Conf.Server.Address,
		hub:      deps.Hub,
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	s.setup(deps)
	return s
}

func (s *Server) setup(deps Deps) {
	conf := deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, headerClientTempID},
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Uni, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	jwt := configureAuth(conf)

	s.app.GET("/", home)
	s.app.GET("/version.json", version(conf))

	g := s.app.Group("/api")
	g.GET("/health", health(deps))

	registerUserAPI(g, jwt, deps.UserSvc, deps.Validate)
	registerSchoolAPI(g, jwt, deps.SchoolSvc, deps.Validate)
	registerNotificationAPI(g, jwt, deps.NotifSvc, deps.UserSvc, deps.Validate)
	registerWebsocketAPI(g, deps.Hub, deps.Logger)
	registerBulletinAPI(g, jwt, deps.SchoolSvc, deps.UserSvc, deps.NotifSvc, deps.Validate, conf)
	registerBulkImportAPI(g, jwt, deps.Importer)
	// must come last, /:module matches any first segment
	registerRecordAPI(g, jwt, deps.AcademicSvc)
}

// Start listens until the server is shut down, failures are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Educafric API!")
}
