package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/minchat/apiserver/internal/services"
	"github.com/minchat/apiserver/internal/store"
	"github.com/minchat/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	authScheme  = "Bearer"
	tokenBytes  = 32
	minUsername = 3
	maxUsername = 50
	minPassword = 6
)

// AuthHandler provides registration, login, and profile endpoints built
// on opaque database-backed bearer tokens.
type AuthHandler struct {
	memberService *services.MemberService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(memberService *services.MemberService) *AuthHandler {
	return &AuthHandler{memberService: memberService}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, memberService *services.MemberService) {
	handler := NewAuthHandler(memberService)
	authenticate := Authenticate(memberService)

	r.Post("/register/", handler.Register)
	r.Post("/login/", handler.Login)
	r.With(authenticate, RequireMember).Get("/profile/", handler.Profile)
}

// Authenticate resolves the Authorization header into a principal.
//
// A missing header, or a scheme other than Bearer, leaves the request
// anonymous and passes it through so unprotected endpoints are
// unaffected. A Bearer header that is malformed or carries an unknown
// token fails the request with 401. The token is a pure lookup key:
// there is no expiry and no signature, and a token overwritten by a
// newer login simply no longer resolves.
func Authenticate(memberService *services.MemberService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.Fields(r.Header.Get("Authorization"))
			if len(parts) == 0 || !strings.EqualFold(parts[0], authScheme) {
				next.ServeHTTP(w, r)
				return
			}
			if len(parts) == 1 {
				writeAuthError(w, "invalid token header: no credentials provided")
				return
			}
			if len(parts) > 2 {
				writeAuthError(w, "invalid token header: token must not contain spaces")
				return
			}

			token := parts[1]
			if !utf8.ValidString(token) {
				writeAuthError(w, "invalid token header: token contains invalid characters")
				return
			}

			member, err := memberService.GetByToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeAuthError(w, "invalid token")
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to authenticate")
				return
			}

			next.ServeHTTP(w, r.WithContext(withMember(r.Context(), member)))
		})
	}
}

// RequireMember rejects anonymous requests on protected routes.
func RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := memberFromContext(r.Context()); err != nil {
			writeAuthError(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register creates a new member and returns a fresh access token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	fieldErrors := validateCredentials(req.Username, req.Password)

	if len(fieldErrors) == 0 {
		_, err := h.memberService.GetByUsername(r.Context(), req.Username)
		switch {
		case err == nil:
			fieldErrors["username"] = append(fieldErrors["username"], "username already exists")
		case !errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusInternalServerError, "failed to check username")
			return
		}
	}
	if len(fieldErrors) > 0 {
		writeFieldErrors(w, fieldErrors)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create member")
		return
	}

	member, err := h.memberService.Create(r.Context(), types.Member{
		Username:     req.Username,
		PasswordHash: string(hashed),
	})
	if err != nil {
		// The unique constraint is the real uniqueness check; the
		// lookup above only exists to surface a friendlier error.
		if errors.Is(err, store.ErrDuplicateUsername) {
			writeFieldErrors(w, map[string][]string{
				"username": {"username already exists"},
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create member")
		return
	}

	token, err := h.issueToken(r, member)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, TokenResponse{
		AccessToken: token,
		TokenType:   authScheme,
		Username:    member.Username,
		UserID:      member.ID,
	})
}

// Login verifies credentials and rotates the member's access token.
// Unknown usernames and wrong passwords produce identical responses so
// the endpoint cannot be used to enumerate members.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	if fieldErrors := validateCredentials(req.Username, req.Password); len(fieldErrors) > 0 {
		writeFieldErrors(w, fieldErrors)
		return
	}

	member, err := h.memberService.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	token, err := h.issueToken(r, member)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   authScheme,
		Username:    member.Username,
		UserID:      member.ID,
	})
}

// Profile returns the authenticated member.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	member, err := memberFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the envelope returned by register and login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
	UserID      int64  `json:"user_id"`
}

// issueToken generates a fresh token and binds it to the member,
// replacing whatever token the member held before.
func (h *AuthHandler) issueToken(r *http.Request, member types.Member) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := h.memberService.SetToken(r.Context(), member.ID, token); err != nil {
		return "", err
	}
	return token, nil
}

// generateToken produces an opaque 256-bit token, hex-encoded so it is
// safe to carry in an HTTP header. Uniqueness in practice comes from
// the entropy; the database constraint on auth_token is the backstop.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// validateCredentials applies the shared username/password field rules
// for registration and login. Password length is checked on the raw
// value, before any hashing.
func validateCredentials(username, password string) map[string][]string {
	fieldErrors := make(map[string][]string)

	if username == "" {
		fieldErrors["username"] = append(fieldErrors["username"], "username is required")
	} else if n := utf8.RuneCountInString(username); n < minUsername || n > maxUsername {
		fieldErrors["username"] = append(fieldErrors["username"], "username must be between 3 and 50 characters")
	}

	if password == "" {
		fieldErrors["password"] = append(fieldErrors["password"], "password is required")
	} else if utf8.RuneCountInString(password) < minPassword {
		fieldErrors["password"] = append(fieldErrors["password"], "password must be at least 6 characters")
	}

	return fieldErrors
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", authScheme)
	writeError(w, http.StatusUnauthorized, message)
}
