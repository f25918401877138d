package echoapi_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonmuehling/educafric-app-sub019/core/bulkimport"
)

func newUploadRequest(t *testing.T, path, token, filename, content string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func Test_bulkImportApi_template(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)

	runHTTPTests(t, env.app, []httpTest{
		{
			name: "unknown module", path: "/api/bulk-import/template/lessons", token: getToken(t, f.teacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "unknown module"}),
		},
		{
			name: "unknown format", path: "/api/bulk-import/template/students?format=ods", token: getToken(t, f.teacher),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "unsupported file format"}),
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/api/bulk-import/template/students?format=csv&lang=fr", getToken(t, f.parent))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "students-template.csv")
	assert.Contains(t, rec.Body.String(), "Prénom *,Nom *")

	req, rec = newAuthRequest(http.MethodGet, "/api/bulk-import/template/classes", getToken(t, f.parent))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx files are zip archives")
}

func Test_bulkImportApi_import(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)

	csv := strings.Join([]string{
		"Prénom *;Nom *;Classe;Matricule",
		"Awa;Njoya;6e A;M001",
		";Kamga;6e A;M002",
		"Paul;Biya;6e B;M003",
		"Marie;Eyenga;6e B;M004",
		"Jean;Mbarga;6e B;M005",
	}, "\n")

	t.Run("parents cannot import", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/api/bulk-import/students", getToken(t, f.parent), "students.csv", csv)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("file required", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/api/bulk-import/students", getToken(t, f.teacher), "", "")
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "a file is required"}`, rec.Body.String())
	})
	t.Run("unsupported file", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/api/bulk-import/students", getToken(t, f.teacher), "students.pdf", csv)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "unsupported file format"}`, rec.Body.String())
	})

	t.Run("free plan", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/api/bulk-import/students", getToken(t, f.teacher), "students.csv", csv)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res bulkimport.Result
		unmarchall(t, rec.Body.Bytes(), &res)
		assert.Equal(t, 5, res.Total)
		assert.Equal(t, env.conf.Freemium.MaxStudents, res.Created)
		require.Len(t, res.Errors, 2)
		assert.Equal(t, 3, res.Errors[0].Row)
		assert.Equal(t, map[string]string{"firstName": "this field is required"}, res.Errors[0].Fields)
		assert.Equal(t, 6, res.Errors[1].Row)
		assert.Contains(t, res.Errors[1].Fields["plan"], "free plan")
	})

	t.Run("records are listed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/students", getToken(t, f.parent))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"matricule":"M001"`)
		assert.NotContains(t, rec.Body.String(), "M002")
	})
}
