// Package apitest runs the real API behind an httptest server for the offline client tests.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/simonmuehling/educafric-app-sub019/apps/api/echo"
	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/academic"
	"github.com/simonmuehling/educafric-app-sub019/core/bulkimport"
	"github.com/simonmuehling/educafric-app-sub019/core/notification"
	"github.com/simonmuehling/educafric-app-sub019/core/school"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
	emailsvc "github.com/simonmuehling/educafric-app-sub019/services/email"
	sqlxrepos "github.com/simonmuehling/educafric-app-sub019/storage/database/sqlx"
	"github.com/simonmuehling/educafric-app-sub019/testutil"
)

// Server is the API with a director of a premium school logged in.
// It can be switched offline (connections are dropped) and told to fail requests.
type Server struct {
	*httptest.Server

	School   school.School
	Director user.User
	Token    string
	Records  academic.Service

	mu       sync.Mutex
	offline  bool
	failures []int
	requests []string
}

func New(t *testing.T) *Server {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()

	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	schRepo := sqlxrepos.NewSchoolRepository(db)

	validate := validator.New()
	uni := core.NewUniversalTranslator()
	core.InitValidators(validate, uni)
	user.InitValidators(validate, uni)
	notification.InitValidators(validate, uni)

	schSvc := school.NewService(schRepo)
	acaSvc := academic.NewService(sqlxrepos.NewRecordRepository(db), schSvc, conf)
	hub := echoapi.NewHub(logger)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), logger, conf, hub)

	app := echoapi.NewServer(echoapi.Deps{
		Conf:        conf,
		Logger:      logger,
		DB:          db,
		Validate:    validate,
		Uni:         uni,
		UserSvc:     user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf, logger), conf),
		SchoolSvc:   schSvc,
		AcademicSvc: acaSvc,
		NotifSvc:    notifSvc,
		Importer:    bulkimport.NewImporter(acaSvc, logger),
		Hub:         hub,
	})

	srv := &Server{Records: acaSvc}
	srv.School = testutil.CreateSchool(t, schRepo, "Collège Saint-Michel", school.TypeSecondaireGeneral, "fr", school.PlanPremium)
	srv.Director = testutil.CreateUser(t, usrRepo, srv.School.ID, "Aminata Ndiaye", "director", "director@test.cm", "Pa$$w0rd!Edu", []string{user.RoleDirector}, true)
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(srv.Director))
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	srv.Token = token

	srv.Server = httptest.NewServer(srv.wrap(app))
	t.Cleanup(func() {
		srv.Server.Close()
		_ = app.Close()
	})
	return srv
}

func (s *Server) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		offline := s.offline
		var status int
		if !offline && len(s.failures) > 0 {
			status, s.failures = s.failures[0], s.failures[1:]
		}
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()

		if offline {
			// drop the connection without answering
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					return
				}
			}
			panic(http.ErrAbortHandler)
		}
		if status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": "injected failure"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetOffline drops every connection until called with false.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	s.offline = offline
	s.mu.Unlock()
}

// FailNext answers the next requests with the given statuses, in order.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	s.failures = append(s.failures, statuses...)
	s.mu.Unlock()
}

// Requests returns "METHOD /path" of every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}
