package echoapi_test

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/simonmuehling/educafric-app-sub019/apps/api/echo"
	"github.com/simonmuehling/educafric-app-sub019/core/bulletin"
	"github.com/simonmuehling/educafric-app-sub019/core/notification"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
	"github.com/simonmuehling/educafric-app-sub019/testutil"
)

func testBulletin() bulletin.Data {
	return bulletin.Data{
		ID:           "bul-2024-t1-001",
		Student:      bulletin.StudentInfo{ID: "stu-1", Name: "Awa Njoya", ClassName: "Terminale C", Series: "C"},
		Term:         "Trimestre 1",
		AcademicYear: "2024-2025",
		Subjects: []bulletin.Subject{
			{Name: "Mathématiques", Grade: 15, Coefficient: 5, Group: bulletin.GroupScientific},
			{Name: "Physique", Grade: 13.5, Coefficient: 4, Group: bulletin.GroupScientific},
			{Name: "Français", Grade: 11, Coefficient: 2, Group: bulletin.GroupLiterary},
		},
		ClassSize: 42,
		Rank:      3,
		IssuedAt:  time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
	}
}

func Test_bulletinApi_preview(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)

	invalid := testBulletin()
	invalid.Subjects = nil
	tooHigh := testBulletin()
	tooHigh.Subjects[2].Grade = 20.5

	runHTTPTests(t, env.app, []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/api/bulletins/preview", body: marchallObj(t, testBulletin()),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "parents cannot preview", method: http.MethodPost, path: "/api/bulletins/preview", body: marchallObj(t, testBulletin()),
			token: getToken(t, f.parent), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "subjects required", method: http.MethodPost, path: "/api/bulletins/preview", body: marchallObj(t, invalid),
			token: getToken(t, f.teacher), wantCode: http.StatusBadRequest, wantData: []byte(`{"subjects": "this field is required"}`),
		},
		{
			name: "grade above scale", method: http.MethodPost, path: "/api/bulletins/preview", body: marchallObj(t, tooHigh),
			token: getToken(t, f.teacher), wantCode: http.StatusBadRequest, wantData: []byte(`{"subjects[2].grade": "must be at most 20"}`),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/bulletins/preview", getToken(t, f.teacher), marchallObj(t, testBulletin()))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bulletin-bul-2024-t1-001.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	// the school block was filled from the current school
	want := testBulletin()
	want.School.Name = f.school.Name
	assert.Equal(t, bulletin.VerificationCode(want, env.conf.Bulletin.Secret), rec.Header().Get("X-Verification-Code"))

	// same input, same document
	req2, rec2 := newAuthRequest(http.MethodPost, "/api/bulletins/preview", getToken(t, f.director), marchallObj(t, testBulletin()))
	env.app.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, rec.Body.Bytes(), rec2.Body.Bytes())
}

func Test_bulletinApi_publishAndVerify(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)
	stu := testutil.CreateUser(t, env.usrRepo, f.school.ID, "Awa Njoya", "awanjoya", "awa@educafric.test", testPassword, []string{user.RoleStudent}, true)

	data := testBulletin()
	data.Student.ID = stu.ID
	tooHigh := testBulletin()
	tooHigh.Subjects[0].Grade = 25

	runHTTPTests(t, env.app, []httpTest{
		{
			name: "recipients required", method: http.MethodPost, path: "/api/bulletins/publish",
			body:  marchallObj(t, PublishRequest{Bulletin: testBulletin()}),
			token: getToken(t, f.teacher), wantCode: http.StatusBadRequest, wantData: []byte(`{"recipient_ids": "this field is required"}`),
		},
		{
			name: "recipient of another school", method: http.MethodPost, path: "/api/bulletins/publish",
			body:  marchallObj(t, PublishRequest{Bulletin: data, RecipientIDs: []string{f.parent.ID, f.otherDirect.ID}}),
			token: getToken(t, f.teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "recipient outside of your school"}),
		},
		{
			name: "unknown recipient", method: http.MethodPost, path: "/api/bulletins/publish",
			body:  marchallObj(t, PublishRequest{Bulletin: data, RecipientIDs: []string{"nobody"}}),
			token: getToken(t, f.director), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "recipient outside of your school"}),
		},
		{
			name: "staff are not recipients", method: http.MethodPost, path: "/api/bulletins/publish",
			body:  marchallObj(t, PublishRequest{Bulletin: data, RecipientIDs: []string{f.teacher.ID}}),
			token: getToken(t, f.director), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "bulletins go to students and parents only"}),
		},
		{
			name: "grade above scale", method: http.MethodPost, path: "/api/bulletins/publish",
			body:  marchallObj(t, PublishRequest{Bulletin: tooHigh, RecipientIDs: []string{f.parent.ID}}),
			token: getToken(t, f.teacher), wantCode: http.StatusBadRequest, wantData: []byte(`{"subjects[0].grade": "must be at most 20"}`),
		},
	})
	for _, id := range []string{f.parent.ID, stu.ID, f.otherDirect.ID, f.teacher.ID} {
		cnt, err := env.notifSvc.UnreadCount(ctxBg, id)
		require.NoError(t, err)
		assert.Zero(t, cnt, "nothing is sent when publishing fails")
	}

	body := marchallObj(t, PublishRequest{Bulletin: data, RecipientIDs: []string{f.parent.ID, f.parent.ID}})
	req, rec := newAuthRequest(http.MethodPost, "/api/bulletins/publish", getToken(t, f.teacher), body)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bulletin-bul-2024-t1-001.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	assert.Equal(t, "2", rec.Header().Get("X-Recipients"))
	code := rec.Header().Get("X-Verification-Code")
	assert.Len(t, code, 16)
	assert.Contains(t, rec.Header().Get("X-Verification-Url"), "code="+code)

	// the parent and the student got notified
	for _, id := range []string{f.parent.ID, stu.ID} {
		notifs, err := env.notifSvc.Query(ctxBg, id, notification.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, notification.ActionViewBulletin, notifs[0].ActionType)
		assert.Equal(t, "/bulletins/bul-2024-t1-001", notifs[0].ActionPath)
		assert.Equal(t, notification.PriorityHigh, notifs[0].Priority)
	}

	// anyone can verify a printed copy
	printed := data
	printed.School.Name = f.school.Name
	tampered := printed
	tampered.Student.Name = "Someone Else"

	runHTTPTests(t, env.app, []httpTest{
		{
			name: "code required", method: http.MethodPost, path: "/api/bulletins/verify", body: marchallObj(t, VerifyRequest{Bulletin: printed}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"code": "this field is required"}`),
		},
		{
			name: "valid", method: http.MethodPost, path: "/api/bulletins/verify",
			body:     marchallObj(t, VerifyRequest{Bulletin: printed, Code: code}),
			wantCode: http.StatusOK, wantData: []byte(`{"valid": true}`),
		},
		{
			name: "lower case code", method: http.MethodPost, path: "/api/bulletins/verify",
			body:     marchallObj(t, VerifyRequest{Bulletin: printed, Code: " " + string(bytes.ToLower([]byte(code)))}),
			wantCode: http.StatusOK, wantData: []byte(`{"valid": true}`),
		},
		{
			name: "tampered", method: http.MethodPost, path: "/api/bulletins/verify",
			body:     marchallObj(t, VerifyRequest{Bulletin: tampered, Code: code}),
			wantCode: http.StatusOK, wantData: []byte(`{"valid": false}`),
		},
	})
}

func Test_bulletinApi_types(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)

	check := func(path string, token string, want bulletin.BulletinType) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res TypeResponse
		unmarchall(t, rec.Body.Bytes(), &res)
		assert.Equal(t, want, res.Type)
		assert.Equal(t, want, res.Config.Type)
		assert.NotEmpty(t, res.Config.Columns)
	}

	check("/api/bulletins/types", getToken(t, f.teacher), bulletin.TypeGeneralFR)
	check("/api/bulletins/types?series=C", getToken(t, f.teacher), bulletin.TypeScientificFR)
	check("/api/bulletins/types?series=A4&lang=en", getToken(t, f.teacher), bulletin.TypeLiteraryEN)
	check("/api/bulletins/types", getToken(t, f.otherDirect), bulletin.TypeGeneralEN)
}
