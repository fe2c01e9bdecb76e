// README: Bearer auth middleware tests.
package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"ridewire/internal/infra"
)

// stubVerifier accepts a fixed table of tokens.
type stubVerifier struct {
	tokens map[string]infra.Identity
}

func (v *stubVerifier) Verify(_ context.Context, raw string) (infra.Identity, error) {
	id, ok := v.tokens[raw]
	if !ok {
		return infra.Identity{}, infra.ErrInvalidToken
	}
	return id, nil
}

func authTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Auth(verifier), func(c *gin.Context) {
		id := Caller(c)
		c.JSON(http.StatusOK, gin.H{"id": id.ID, "role": id.Role})
	})
	return r
}

func TestAuthMissingToken(t *testing.T) {
	r := authTestRouter(&stubVerifier{})

	for _, header := range []string{"", "Bearer ", "Basic abc", "token-without-scheme"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}

// Both a missing and a forged token are authentication failures; 403 is
// reserved for authenticated callers acting outside their rides.
func TestAuthInvalidToken(t *testing.T) {
	r := authTestRouter(&stubVerifier{tokens: map[string]infra.Identity{"good": {ID: "u1"}}})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer forged")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuthPropagatesIdentity(t *testing.T) {
	r := authTestRouter(&stubVerifier{tokens: map[string]infra.Identity{
		"good": {ID: "u1", Role: "driver"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	want := `{"id":"u1","role":"driver"}`
	if w.Body.String() != want {
		t.Fatalf("body = %s, want %s", w.Body.String(), want)
	}
}
