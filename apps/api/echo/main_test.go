package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	. "github.com/simonmuehling/educafric-app-sub019/apps/api/echo"
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

var (
	ctxBg = context.Background()

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type testEnv struct {
	app       *Server
	db        *sqlx.DB
	conf      *core.Config
	usrRepo   user.Repository
	schRepo   school.Repository
	notifRepo notification.Repository
	notifSvc  notification.Service
	hub       *Hub
}

func setup(t *testing.T) *testEnv {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	schRepo := sqlxrepos.NewSchoolRepository(db)
	recRepo := sqlxrepos.NewRecordRepository(db)
	notifRepo := sqlxrepos.NewNotificationRepository(db)

	// set up validation
	validate := validator.New()
	uni := core.NewUniversalTranslator()
	core.InitValidators(validate, uni)
	user.InitValidators(validate, uni)
	notification.InitValidators(validate, uni)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	schSvc := school.NewService(schRepo)
	acaSvc := academic.NewService(recRepo, schSvc, conf)
	hub := NewHub(logger)
	notifSvc := notification.NewService(notifRepo, logger, conf, hub)

	// set up server
	app := NewServer(Deps{
		Conf:        conf,
		Logger:      logger,
		DB:          db,
		Validate:    validate,
		Uni:         uni,
		UserSvc:     usrSvc,
		SchoolSvc:   schSvc,
		AcademicSvc: acaSvc,
		NotifSvc:    notifSvc,
		Importer:    bulkimport.NewImporter(acaSvc, logger),
		Hub:         hub,
	})
	t.Cleanup(func() { _ = app.Close() })

	return &testEnv{
		app:       app,
		db:        db,
		conf:      conf,
		usrRepo:   usrRepo,
		schRepo:   schRepo,
		notifRepo: notifRepo,
		notifSvc:  notifSvc,
		hub:       hub,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, data []byte, dst interface{}) {
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("unmarchall(%s) failed: %v", data, err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// fixtures holds a free school with its staff, and a second school for isolation checks.
type fixtures struct {
	school, other                                 school.School
	admin, director, teacher, parent, otherDirect user.User
}

const testPassword = "Pa$$w0rd!Edu"

func newFixtures(t *testing.T, env *testEnv) fixtures {
	var f fixtures
	f.school = testutil.CreateSchool(t, env.schRepo, "Lycée de Yaoundé", school.TypeSecondaireGeneral, "fr", school.PlanFree)
	f.other = testutil.CreateSchool(t, env.schRepo, "Bilingual College", school.TypeSecondary, "en", school.PlanPremium)
	f.admin = testutil.CreateUser(t, env.usrRepo, "", "Admin", "admin", "admin@educafric.test", testPassword, []string{user.RoleAdmin}, true)
	f.director = testutil.CreateUser(t, env.usrRepo, f.school.ID, "Director", "director", "director@educafric.test", testPassword, []string{user.RoleDirector}, true)
	f.teacher = testutil.CreateUser(t, env.usrRepo, f.school.ID, "Teacher", "teacher", "teacher@educafric.test", testPassword, []string{user.RoleTeacher}, true)
	f.parent = testutil.CreateUser(t, env.usrRepo, f.school.ID, "Parent", "parent", "parent@educafric.test", testPassword, []string{user.RoleParent}, true)
	f.otherDirect = testutil.CreateUser(t, env.usrRepo, f.other.ID, "Other Director", "odirector", "odirector@educafric.test", testPassword, []string{user.RoleDirector}, true)
	return f
}
