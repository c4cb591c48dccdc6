// Package api exposes the account verification endpoint consumed by the web
// application backend. The backend exchanges the code a user typed in for a
// link between their account and the Telegram chat that issued the code.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/yury-yury/telegram-bot/core/logger"
	"github.com/yury-yury/telegram-bot/storage"
	"github.com/yury-yury/telegram-bot/telegram"
	"log/slog"
)

const textVerified = "Bot token verified"

// Linker binds a verification code to an application account.
type Linker interface {
	LinkAccount(ctx context.Context, code string, userID int64) (storage.TgUser, error)
}

// Sender delivers the confirmation reply to the linked chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (telegram.Message, error)
}

// Server is the HTTP surface for the verification flow. All requests must
// carry the shared bearer token.
type Server struct {
	linker Linker
	sender Sender
	token  string
}

func NewServer(linker Linker, sender Sender, token string) *Server {
	return &Server{linker: linker, sender: sender, token: token}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /bot/verify", s.handleVerify)
	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "api", "server.started",
			slog.String("status", "ok"),
			slog.String("listen", listen),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		logger.Info(ctx, "api", "server.stopped", slog.String("status", logger.Status(err)))
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type verifyRequest struct {
	VerificationCode string `json:"verification_code"`
	UserID           int64  `json:"user_id"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.authorized(r) {
		logger.Warn(ctx, "api", "verify.unauthorized", slog.String("status", "fail"))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.VerificationCode = strings.TrimSpace(req.VerificationCode)
	if req.VerificationCode == "" || req.UserID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "verification_code and user_id are required"})
		return
	}

	user, err := s.linker.LinkAccount(ctx, req.VerificationCode, req.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Info(ctx, "api", "verify.code_miss", slog.String("status", "fail"))
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "verification code not found"})
		return
	}
	if err != nil {
		logger.Error(ctx, "api", "verify.link_failed", slog.String("err", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	// The chat notification is best effort: the link is already committed.
	if _, err := s.sender.SendMessage(ctx, user.ChatID, textVerified); err != nil {
		logger.Warn(ctx, "api", "verify.notify_failed",
			slog.Int64("chat_id", user.ChatID),
			slog.String("err", err.Error()),
		)
	}

	logger.Info(ctx, "api", "verify.linked",
		slog.String("status", "ok"),
		slog.Int64("chat_id", user.ChatID),
		slog.Int64("user_id", req.UserID),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	return ok && token == s.token && s.token != ""
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
