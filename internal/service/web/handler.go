package web

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"ChatWidget/internal/ai"
	"ChatWidget/internal/service/completion"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	maxBodyBytes       = 64 << 10
	generateFailureMsg = "Failed to generate a response"
)

// Chatter runs one conversational turn.
type Chatter interface {
	SendMessage(ctx context.Context, prompt, conversationID string) (completion.Reply, error)
}

type chatResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Errors map[string][]string `json:"errors"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	chat     Chatter
	validate *validator.Validate
	logger   *zap.SugaredLogger
	pongWait time.Duration
}

func NewHandler(chat Chatter, logger *zap.SugaredLogger) *Handler {
	return &Handler{chat: chat, validate: newValidator(), logger: logger, pongWait: wsPongWait}
}

// Routes returns the full HTTP surface: API, websocket, health check and the widget.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("GET /api/chat/ws", h.handleChatWS)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: static assets: " + err.Error())
	}
	mux.Handle("GET /", http.FileServer(http.FS(sub)))

	return h.logRequests(mux)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, validationResponse{Errors: map[string][]string{"body": {"invalid JSON"}}})
		return
	}
	status, body := h.turn(r.Context(), req)
	writeJSON(w, status, body)
}

// turn validates req and runs it through the completion service. The returned body is
// one of chatResponse, validationResponse or errorResponse.
func (h *Handler) turn(ctx context.Context, req chatRequest) (int, any) {
	if fieldErrs := validateRequest(h.validate, &req); fieldErrs != nil {
		return http.StatusBadRequest, validationResponse{Errors: fieldErrs}
	}

	reply, err := h.chat.SendMessage(ctx, req.Prompt, req.ConversationID)
	if err != nil {
		if errors.Is(err, ai.ErrUpstream) {
			h.logger.Warnw("Upstream failure", "conversation_id", req.ConversationID, "error", err)
		} else {
			h.logger.Errorw("Chat turn failed", "conversation_id", req.ConversationID, "error", err)
		}
		return http.StatusInternalServerError, errorResponse{Error: generateFailureMsg}
	}
	return http.StatusOK, chatResponse{Message: reply.Message}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debugw("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
