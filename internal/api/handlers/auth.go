package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/vidtube/vidtube-server/internal/api/middleware"
	"github.com/vidtube/vidtube-server/internal/domain"
	"github.com/vidtube/vidtube-server/internal/service"
	"github.com/vidtube/vidtube-server/internal/storage"
)

// 8 MiB per uploaded image
const maxUploadSize = 8 << 20

type AuthHandler struct {
	sessions *service.SessionService
	uploader storage.Uploader
}

func NewAuthHandler(sessions *service.SessionService, uploader storage.Uploader) *AuthHandler {
	return &AuthHandler{sessions: sessions, uploader: uploader}
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UserResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	AvatarURL     string `json:"avatarUrl"`
	CoverImageURL string `json:"coverImageUrl,omitempty"`
}

type LoginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID.String(),
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
	}
}

var errFileTooLarge = errors.New("file too large")

// Register accepts a multipart form: fullName, email, username, password
// fields plus an avatar file (required) and a coverImage file (optional).
// Fields and uniqueness are checked before anything touches object storage,
// so a doomed registration uploads nothing.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(2 * maxUploadSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	input := service.RegisterInput{
		FullName: r.FormValue("fullName"),
		Email:    r.FormValue("email"),
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}
	if strings.TrimSpace(input.FullName) == "" || strings.TrimSpace(input.Email) == "" ||
		strings.TrimSpace(input.Username) == "" || strings.TrimSpace(input.Password) == "" {
		http.Error(w, "fullName, email, username and password are required", http.StatusBadRequest)
		return
	}

	if err := h.sessions.CheckAvailable(r.Context(), input.Username, input.Email); err != nil {
		respondError(w, err)
		return
	}

	avatarURL, err := h.uploadFormFile(r, "avatar")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		http.Error(w, "Avatar file is required", http.StatusBadRequest)
		return
	case errors.Is(err, errFileTooLarge):
		http.Error(w, "Avatar file is too large", http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Cover image is optional, but when one is sent its upload must succeed.
	coverImageURL, err := h.uploadFormFile(r, "coverImage")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// fine, no cover image
	case errors.Is(err, errFileTooLarge):
		http.Error(w, "Cover image file is too large", http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	input.AvatarURL = avatarURL
	input.CoverImageURL = coverImageURL

	user, err := h.sessions.Register(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	result, err := h.sessions.Login(r.Context(), service.LoginInput{
		Identifier: identifier,
		Password:   req.Password,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	setTokenCookies(w, result.AccessToken, result.RefreshToken)
	respondJSON(w, http.StatusOK, LoginResponse{
		User:         toUserResponse(result.User),
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

// Refresh reads the incoming refresh token from the refreshToken cookie or,
// failing that, from the request body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var presented string
	if cookie, err := r.Cookie("refreshToken"); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	pair, err := h.sessions.Refresh(r.Context(), presented)
	if err != nil {
		respondError(w, err)
		return
	}

	setTokenCookies(w, pair.AccessToken, pair.RefreshToken)
	respondJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.sessions.Logout(r.Context(), userID); err != nil {
		respondError(w, err)
		return
	}

	clearTokenCookies(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.sessions.GetUserByID(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) uploadFormFile(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		return "", errFileTooLarge
	}

	contentType := header.Header.Get("Content-Type")
	url, err := h.uploader.Upload(r.Context(), header.Filename, contentType, file)
	if err != nil {
		log.Printf("ERROR [AuthHandler] uploading %s: %v", field, err)
		return "", err
	}
	return url, nil
}

func setTokenCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "accessToken",
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refreshToken",
		Value:    refreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{"accessToken", "refreshToken"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps the error taxonomy to stable status codes. Messages come
// from the sentinels, so auth failures stay generic.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnauthorized):
		http.Error(w, domain.ErrUnauthorized.Error(), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, domain.ErrNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, domain.ErrConflict.Error(), http.StatusConflict)
	default:
		log.Printf("ERROR [AuthHandler] internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
