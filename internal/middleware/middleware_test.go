package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type validatorStub struct{}

func (validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	switch token {
	case "admin":
		return &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin}, nil
	case "teacher":
		return &models.JWTClaims{UserID: "u-2", Role: models.RoleTeacher}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
}

func newGuardedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/guarded", JWT(validatorStub{}), RequirePrivileged(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestPrivilegedGuard(t *testing.T) {
	cases := map[string]int{
		"":               http.StatusUnauthorized,
		"Token admin":    http.StatusUnauthorized,
		"Bearer forged":  http.StatusUnauthorized,
		"Bearer teacher": http.StatusForbidden,
		"Bearer admin":   http.StatusOK,
	}
	r := newGuardedRouter()
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, header)
	}
}

func TestResponseMetaRecordsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var captured map[string]interface{}
	r.Use(WithResponseMeta())
	r.GET("/stats", func(c *gin.Context) {
		SetCacheHit(c, true)
		captured = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, captured[cacheHitKey])
	assert.Contains(t, captured, "processing_time_ms")
}
