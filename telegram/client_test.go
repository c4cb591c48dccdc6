package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("TOKEN", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestGetUpdatesParams(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"ok":true,"result":[]}`))
	})

	updates, err := c.GetUpdates(context.Background(), 37, 25)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 0 {
		t.Fatalf("expected empty batch, got %d", len(updates))
	}
	if gotPath != "/botTOKEN/getUpdates" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery.Get("offset") != "37" || gotQuery.Get("timeout") != "25" {
		t.Errorf("query = %v", gotQuery)
	}
}

func TestGetUpdatesDecode(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":101,"message":{"message_id":1,"date":1700000000,"text":"hi",
				"from":{"id":5,"is_bot":false,"first_name":"Ann","username":"ann","language_code":"en"},
				"chat":{"id":5,"first_name":"Ann","username":"ann","type":"private","extra_field":true}}},
			{"update_id":102},
			{"update_id":"bad"},
			{"message":{"message_id":9,"chat":{"id":5,"type":"private"}}}
		]}`))
	})

	updates, err := c.GetUpdates(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 decoded updates (malformed skipped), got %d", len(updates))
	}
	first := updates[0]
	if first.ID != 101 {
		t.Errorf("update id = %d", first.ID)
	}
	if first.Message == nil || first.Message.Text != "hi" || first.Message.Chat.ID != 5 {
		t.Errorf("message = %+v", first.Message)
	}
	if first.Message.From == nil || first.Message.From.Username != "ann" {
		t.Errorf("from = %+v", first.Message.From)
	}
	if updates[1].ID != 102 || updates[1].Message != nil {
		t.Errorf("second update = %+v", updates[1])
	}
}

func TestSendMessage(t *testing.T) {
	var gotForm url.Values
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Write([]byte(`{"ok":true,"result":{"message_id":77,"date":1700000001,"text":"hello","chat":{"id":42,"type":"private"}}}`))
	})

	msg, err := c.SendMessage(context.Background(), 42, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotForm.Get("chat_id") != "42" || gotForm.Get("text") != "hello" {
		t.Errorf("form = %v", gotForm)
	}
	if msg.ID != 77 || msg.Chat.ID != 42 {
		t.Errorf("msg = %+v", msg)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	})

	_, err := c.SendMessage(context.Background(), 42, "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != 400 {
		t.Errorf("code = %d", apiErr.Code)
	}
}

func TestGetUpdatesMalformedEnvelope(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	})
	if _, err := c.GetUpdates(context.Background(), 0, 0); err == nil {
		t.Fatal("expected decode error")
	}
}
