package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yury-yury/telegram-bot/storage"
	"github.com/yury-yury/telegram-bot/telegram"
)

type fakeLinker struct {
	code   string
	chatID int64

	gotCode   string
	gotUserID int64
	err       error
}

func (f *fakeLinker) LinkAccount(_ context.Context, code string, userID int64) (storage.TgUser, error) {
	f.gotCode = code
	f.gotUserID = userID
	if f.err != nil {
		return storage.TgUser{}, f.err
	}
	if code != f.code {
		return storage.TgUser{}, storage.ErrNotFound
	}
	return storage.TgUser{ChatID: f.chatID}, nil
}

type fakeNotifier struct {
	chatID int64
	text   string
	err    error
}

func (f *fakeNotifier) SendMessage(_ context.Context, chatID int64, text string) (telegram.Message, error) {
	f.chatID = chatID
	f.text = text
	return telegram.Message{}, f.err
}

func doVerify(t *testing.T, srv *Server, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/bot/verify", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestVerifyLinksAndNotifies(t *testing.T) {
	linker := &fakeLinker{code: "abc123", chatID: 500}
	notifier := &fakeNotifier{}
	srv := NewServer(linker, notifier, "secret")

	rec := doVerify(t, srv, "secret", `{"verification_code":"abc123","user_id":42}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if linker.gotCode != "abc123" || linker.gotUserID != 42 {
		t.Errorf("linker called with %q/%d", linker.gotCode, linker.gotUserID)
	}
	if notifier.chatID != 500 || notifier.text != textVerified {
		t.Errorf("notification = chat %d text %q", notifier.chatID, notifier.text)
	}
}

func TestVerifyRejectsBadToken(t *testing.T) {
	linker := &fakeLinker{code: "abc123", chatID: 500}
	srv := NewServer(linker, &fakeNotifier{}, "secret")

	for _, token := range []string{"", "wrong"} {
		rec := doVerify(t, srv, token, `{"verification_code":"abc123","user_id":42}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d", token, rec.Code)
		}
	}
	if linker.gotCode != "" {
		t.Error("linker reached without authorization")
	}
}

func TestVerifyUnknownCode(t *testing.T) {
	srv := NewServer(&fakeLinker{code: "abc123"}, &fakeNotifier{}, "secret")

	rec := doVerify(t, srv, "secret", `{"verification_code":"nosuch","user_id":42}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestVerifyBadRequests(t *testing.T) {
	srv := NewServer(&fakeLinker{code: "abc123"}, &fakeNotifier{}, "secret")

	cases := []string{
		`not json`,
		`{"verification_code":"","user_id":42}`,
		`{"verification_code":"abc123","user_id":0}`,
	}
	for _, body := range cases {
		if rec := doVerify(t, srv, "secret", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, rec.Code)
		}
	}
}

func TestVerifyNotifyFailureStillOK(t *testing.T) {
	srv := NewServer(
		&fakeLinker{code: "abc123", chatID: 500},
		&fakeNotifier{err: errors.New("chat gone")},
		"secret",
	)

	rec := doVerify(t, srv, "secret", `{"verification_code":"abc123","user_id":42}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, link must not be rolled back by a failed reply", rec.Code)
	}
}

func TestVerifyLinkError(t *testing.T) {
	srv := NewServer(&fakeLinker{err: errors.New("db down")}, &fakeNotifier{}, "secret")

	rec := doVerify(t, srv, "secret", `{"verification_code":"abc123","user_id":42}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
