package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/minchat/apiserver/types"
)

type contextKey string

const contextMemberKey contextKey = "member"

// memberFromContext returns the authenticated principal bound to the
// request, or an error when the request is anonymous. Handlers never
// accept a member identity from client input.
func memberFromContext(ctx context.Context) (types.Member, error) {
	member, ok := ctx.Value(contextMemberKey).(types.Member)
	if !ok {
		return types.Member{}, errors.New("no authenticated member")
	}
	return member, nil
}

func withMember(ctx context.Context, member types.Member) context.Context {
	return context.WithValue(ctx, contextMemberKey, member)
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationErrorResponse maps each failing field to its messages.
type ValidationErrorResponse struct {
	Error       string              `json:"error"`
	FieldErrors map[string][]string `json:"field_errors"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeFieldErrors(w http.ResponseWriter, fieldErrors map[string][]string) {
	writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Error:       "validation failed",
		FieldErrors: fieldErrors,
	})
}
