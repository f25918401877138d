package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/simonmuehling/educafric-app-sub019/apps/api/echo"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
	"github.com/simonmuehling/educafric-app-sub019/testutil"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)
	deactivated := testutil.CreateUser(t, env.usrRepo, f.school.ID, "Gone", "gone", "gone@educafric.test", testPassword, []string{user.RoleTeacher}, false)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/api/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username": "this field is required", "password": "this field is required"}`),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/api/users/login", body: login("nobody", testPassword),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/users/login", body: login(f.director.Username, "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/api/users/login", body: login(deactivated.Username, testPassword),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, env.app, tests)

	t.Run("by email, case-insensitive", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/users/login", login("  DIRECTOR@educafric.test ", testPassword))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res LoginResponse
		unmarchall(t, rec.Body.Bytes(), &res)
		require.NotEmpty(t, res.Token)

		// the token opens the authed endpoints
		req, rec = newAuthRequest(http.MethodGet, "/api/users/me", res.Token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var me user.User
		unmarchall(t, rec.Body.Bytes(), &me)
		assert.Equal(t, f.director.ID, me.ID)
		assert.Equal(t, f.school.ID, me.SchoolID)
		assert.False(t, me.LastLogin.IsZero())
	})
}

func Test_userApi_tokenRefresh(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)

	runHTTPTests(t, env.app, []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/api/users/token-refresh",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/users/token-refresh", getToken(t, f.teacher))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var res LoginResponse
	unmarchall(t, rec.Body.Bytes(), &res)
	assert.NotEmpty(t, res.Token)
}

func Test_userApi_register(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)

	newUser := func(uname string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			SchoolID:        f.other.ID, // ignored for directors
			Name:            "New " + uname,
			Username:        uname,
			Email:           uname + "@educafric.test",
			Password:        testPassword,
			PasswordConfirm: testPassword,
			Roles:           roles,
		})
	}

	runHTTPTests(t, env.app, []httpTest{
		{
			name: "teacher cannot register", method: http.MethodPost, path: "/api/users/register",
			body: newUser("teach2", user.RoleTeacher), token: getToken(t, f.teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "director cannot create admins", method: http.MethodPost, path: "/api/users/register",
			body: newUser("boss", user.RoleAdmin), token: getToken(t, f.director),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"roles": "not enough rights to set these roles"}`),
		},
		{
			name: "username taken", method: http.MethodPost, path: "/api/users/register",
			body: newUser(f.teacher.Username, user.RoleTeacher), token: getToken(t, f.director),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"username": "a user with this username already exists"}`),
		},
		{
			name: "weak password", method: http.MethodPost, path: "/api/users/register",
			body:  []byte(`{"name": "Weak", "username": "weak", "password": "12345678", "password_confirm": "12345678"}`),
			token: getToken(t, f.director), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"password": "password cannot be entirely numeric"}`),
		},
	})

	t.Run("director registers in own school", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/users/register", getToken(t, f.director), newUser("newteacher", user.RoleTeacher))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		unmarchall(t, rec.Body.Bytes(), &usr)
		assert.Equal(t, f.school.ID, usr.SchoolID)
		assert.Equal(t, []string{user.RoleTeacher}, usr.Roles)
		assert.True(t, usr.Active())
	})

	t.Run("admin registers anywhere", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/users/register", getToken(t, f.admin), newUser("newdirector", user.RoleDirector))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		unmarchall(t, rec.Body.Bytes(), &usr)
		assert.Equal(t, f.other.ID, usr.SchoolID)
	})
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)

	ids := func(path, token string) []string {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var users []user.User
		unmarchall(t, rec.Body.Bytes(), &users)
		res := make([]string, len(users))
		for i, usr := range users {
			res[i] = usr.ID
		}
		return res
	}

	runHTTPTests(t, env.app, []httpTest{
		{name: "auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "parents cannot list", path: "/api/users", token: getToken(t, f.parent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})

	t.Run("director only sees own school", func(t *testing.T) {
		got := ids("/api/users?school_id="+f.other.ID, getToken(t, f.director))
		assert.ElementsMatch(t, []string{f.director.ID, f.teacher.ID, f.parent.ID}, got)
	})
	t.Run("admin filters by school", func(t *testing.T) {
		got := ids("/api/users?school_id="+f.other.ID, getToken(t, f.admin))
		assert.Equal(t, []string{f.otherDirect.ID}, got)
	})
	t.Run("search and ordering", func(t *testing.T) {
		got := ids("/api/users?search=TEACH&ordering=-name", getToken(t, f.director))
		assert.Equal(t, []string{f.teacher.ID}, got)
	})
	t.Run("role filter", func(t *testing.T) {
		got := ids("/api/users?role="+user.RoleParent, getToken(t, f.director))
		assert.Equal(t, []string{f.parent.ID}, got)
	})
}

func Test_userApi_detail(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)

	notFound := marchallObj(t, httpErr{Error: "not found"})
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	runHTTPTests(t, env.app, []httpTest{
		{name: "self", path: "/api/users/" + f.parent.ID, token: getToken(t, f.parent), wantCode: http.StatusOK},
		{name: "parent cannot see others", path: "/api/users/" + f.teacher.ID, token: getToken(t, f.parent), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "director sees own school", path: "/api/users/" + f.teacher.ID, token: getToken(t, f.director), wantCode: http.StatusOK},
		{name: "director cannot see other school", path: "/api/users/" + f.otherDirect.ID, token: getToken(t, f.director), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "admin sees all", path: "/api/users/" + f.otherDirect.ID, token: getToken(t, f.admin), wantCode: http.StatusOK},
		{name: "unknown", path: "/api/users/unknown", token: getToken(t, f.admin), wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "parent cannot change own roles", method: http.MethodPut, path: "/api/users/" + f.parent.ID,
			body: []byte(`{"roles": ["director:"]}`), token: getToken(t, f.parent), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "no self delete", method: http.MethodDelete, path: "/api/users/" + f.director.ID,
			token: getToken(t, f.director), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "director cannot delete admin", method: http.MethodDelete, path: "/api/users/" + f.admin.ID,
			token: getToken(t, f.director), wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "teacher cannot delete", method: http.MethodDelete, path: "/api/users/" + f.parent.ID,
			token: getToken(t, f.teacher), wantCode: http.StatusNotFound, wantData: notFound,
		},
	})

	t.Run("update name", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/users/"+f.parent.ID, getToken(t, f.parent), []byte(`{"name": "  Maman Ngo "}`))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarchall(t, rec.Body.Bytes(), &usr)
		assert.Equal(t, "Maman Ngo", usr.Name)
		assert.Equal(t, f.parent.Username, usr.Username)
	})

	t.Run("director deletes a parent", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/users/"+f.parent.ID, getToken(t, f.director))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := env.usrRepo.GetUser(ctxBg, user.GetFilter{ID: f.parent.ID})
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func Test_userApi_roles(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)

	runHTTPTests(t, env.app, []httpTest{
		{name: "roles", path: "/api/users/roles", token: getToken(t, f.admin), wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)},
		{
			name: "roles (teacher)", path: "/api/users/roles", token: getToken(t, f.teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})
}
