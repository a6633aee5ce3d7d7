package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-portal-api/pkg/middleware/requestid"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

func serve(t *testing.T, requestID string, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", handler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestJSONMergesRequestIDIntoMeta(t *testing.T) {
	w := serve(t, "req-42", func(c *gin.Context) {
		JSON(c, http.StatusOK, gin.H{"ok": true}, nil, map[string]interface{}{"cache_hit": true})
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, w)["meta"], &meta))
	assert.Equal(t, "req-42", meta["request_id"])
	assert.Equal(t, true, meta["cache_hit"])
}

func TestJSONWithoutRequestIDOmitsMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	JSON(c, http.StatusOK, "x", nil)
	_, ok := decode(t, w)["meta"]
	assert.False(t, ok)
}

func TestErrorCarriesRequestIDAndRecordsServerFailures(t *testing.T) {
	var recorded int
	w := serve(t, "req-7", func(c *gin.Context) {
		Error(c, errors.New("db down"))
		recorded = len(c.Errors)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, recorded)

	envelope := decode(t, w)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(envelope["meta"], &meta))
	assert.Equal(t, "req-7", meta["request_id"])
	assert.NotContains(t, string(envelope["error"]), "db down")

	w = serve(t, "", func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
		recorded = len(c.Errors)
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, recorded)
}

func TestAttachmentSanitisesFilename(t *testing.T) {
	w := serve(t, "", func(c *gin.Context) {
		Attachment(c, "../reports/attendance \"class\".csv", "text/csv", []byte("a,b\n"))
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename=attendance--class-.csv`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "4", w.Header().Get("Content-Length"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "a,b\n", w.Body.String())
}

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"attendance-class-20240501.csv": "attendance-class-20240501.csv",
		`C:\tmp\x.pdf`:                  "x.pdf",
		"../../etc/passwd":              "passwd",
		"..":                            defaultFilename,
		"":                              defaultFilename,
		"résumé.csv":                    "r-sum-.csv",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeFilename(in), in)
	}
}
