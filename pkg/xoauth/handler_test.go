package xoauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleStartRejectsMissingAccountID(t *testing.T) {
	h := NewHandler(New(Config{}, &fakeTokenStore{}, &fakeStateStore{}), &fakeTokenStore{})
	req := httptest.NewRequest(http.MethodGet, "/oauth/x/start", nil)
	rec := httptest.NewRecorder()

	h.HandleStart(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestHandleCallbackRejectsMissingParams(t *testing.T) {
	h := NewHandler(New(Config{}, &fakeTokenStore{}, &fakeStateStore{}), &fakeTokenStore{})
	req := httptest.NewRequest(http.MethodGet, "/oauth/x/callback", nil)
	rec := httptest.NewRecorder()

	h.HandleCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestHandleStatusReportsDisconnectedWhenNoToken(t *testing.T) {
	h := NewHandler(New(Config{}, &fakeTokenStore{err: errNotFound}, &fakeStateStore{}), &fakeTokenStore{err: errNotFound})
	req := httptest.NewRequest(http.MethodGet, "/oauth/x/status?account_id=5", nil)
	rec := httptest.NewRecorder()

	h.HandleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body == "" {
		t.Fatal("expected a response body")
	}
}
