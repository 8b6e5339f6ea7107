package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/minchat/apiserver/internal/services"
	"github.com/minchat/apiserver/types"
)

const (
	defaultLimit  = 50
	maxLimit      = 100
	defaultOffset = 0
	maxTextLength = 1000
)

// MessageHandler provides HTTP handlers for chat messages.
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler constructs a handler with the provided service.
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// MessageRouter registers message routes on the given router. Both
// routes require an authenticated principal.
func MessageRouter(r chi.Router, messageService *services.MessageService, authenticate func(http.Handler) http.Handler) {
	handler := NewMessageHandler(messageService)

	r.With(authenticate, RequireMember).Get("/messages/", handler.ListMessages)
	r.With(authenticate, RequireMember).Post("/messages/create/", handler.CreateMessage)
}

// ListMessages returns a window of the global message stream, oldest
// first, plus the total count so clients can page.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	messages, total, err := h.messageService.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, MessageListResponse{
		Messages: messages,
		Total:    total,
	})
}

// CreateMessage posts a message as the authenticated member.
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	member, err := memberFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "authentication required")
		return
	}

	var req MessageCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	text, fieldErrors := validateMessageText(req.Text)
	if len(fieldErrors) > 0 {
		writeFieldErrors(w, fieldErrors)
		return
	}

	message, err := h.messageService.Create(r.Context(), member, text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create message")
		return
	}

	writeJSON(w, http.StatusCreated, message)
}

type MessageCreateRequest struct {
	Text string `json:"text"`
}

// MessageListResponse is the paginated list response payload.
type MessageListResponse struct {
	Messages []types.Message `json:"messages"`
	Total    int             `json:"total"`
}

// parsePagination clamps the limit and offset query parameters instead
// of rejecting them: a limit outside [1,100] resets to 50, a negative
// offset resets to 0, and unparsable values fall back the same way.
// There is no upper bound on offset; a window past the end of the data
// is simply empty.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultLimit
	offset = defaultOffset

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 1 && parsed <= maxLimit {
			limit = parsed
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// validateMessageText trims surrounding whitespace and enforces the
// 1–1000 character bounds. An all-whitespace submission is rejected as
// empty. Length is counted in characters, not bytes.
func validateMessageText(raw string) (string, map[string][]string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", map[string][]string{
			"text": {"message text must not be empty"},
		}
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		return "", map[string][]string{
			"text": {"message text must be at most 1000 characters"},
		}
	}
	return text, nil
}
