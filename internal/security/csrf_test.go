package security

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func TestCSRFMiddlewareBlocksMissingToken(t *testing.T) {
	handler := CSRF{}.Middleware(okHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/submit", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "CSRF_FAILED" {
		t.Fatalf("expected CSRF_FAILED, got %q", body.Error.Code)
	}
}

func TestCSRFMiddlewareAllowsValidToken(t *testing.T) {
	handler := CSRF{Header: "X-CSRF-Token", Cookie: "csrf"}.Middleware(okHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil)
	token := "secure-token"
	req.Header.Set("X-CSRF-Token", token)
	req.AddCookie(&http.Cookie{Name: "csrf", Value: token})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCSRFMiddlewareRejectsMismatch(t *testing.T) {
	handler := CSRF{}.Middleware(okHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)
	req.Header.Set("X-CSRF-Token", "one")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "two"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCSRFMiddlewareSkipsBearer(t *testing.T) {
	handler := CSRF{}.Middleware(okHandler(http.StatusAccepted))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/submit", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for bearer request, got %d", rr.Code)
	}
}

func TestCSRFMiddlewareHonoursSkip(t *testing.T) {
	csrf := CSRF{Skip: func(r *http.Request) bool { return r.URL.Path == "/hooks" }}
	handler := csrf.Middleware(okHandler(http.StatusNoContent))

	req := httptest.NewRequest(http.MethodPost, "/hooks", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for skipped path, got %d", rr.Code)
	}
}

func TestCSRFMiddlewareIssuesCookieOnSafeRequest(t *testing.T) {
	handler := CSRF{Cookie: "csrf"}.Middleware(okHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "csrf" || cookies[0].Value == "" {
		t.Fatalf("expected csrf cookie to be issued, got %+v", cookies)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: "csrf", Value: cookies[0].Value})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if len(rr.Result().Cookies()) != 0 {
		t.Fatalf("expected existing cookie to be kept")
	}
}
