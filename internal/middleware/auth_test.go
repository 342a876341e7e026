package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"user_id": GetUserID(r.Context()),
			"role":    GetRole(r.Context()),
		})
	})
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Error.Code
}

func TestJWTAuth_Middleware(t *testing.T) {
	auth := NewJWTAuth(testSecret)
	handler := auth.Middleware(identityEcho())

	t.Run("valid token attaches identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{
			"user_id": "user-7",
			"role":    "student",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var identity map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &identity))
		assert.Equal(t, "user-7", identity["user_id"])
		assert.Equal(t, "student", identity["role"])
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec.Body.Bytes()))
	})

	t.Run("expired token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{
			"user_id": "user-7",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_EXPIRED", errorCode(t, rec.Body.Bytes()))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": "user-7",
		}).SignedString([]byte("other-secret"))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+other)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	auth := NewJWTAuth(testSecret)
	handler := auth.Middleware(RequireRole("teacher")(identityEcho()))

	request := func(role string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{
			"user_id": "user-7",
			"role":    role,
			"exp":     time.Now().Add(time.Hour).Unix(),
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("matching role passes", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, request("teacher").Code)
	})

	t.Run("other role is forbidden", func(t *testing.T) {
		rec := request("student")
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", errorCode(t, rec.Body.Bytes()))
	})
}
