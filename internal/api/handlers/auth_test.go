package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidtube/vidtube-server/internal/api"
	"github.com/vidtube/vidtube-server/internal/repository"
	"github.com/vidtube/vidtube-server/internal/repository/memory"
	"github.com/vidtube/vidtube-server/internal/service"
	"github.com/vidtube/vidtube-server/internal/testutil"
)

// stubUploader records uploads and returns deterministic URLs. Uploads of
// filenames listed in failFiles fail, for exercising storage outages.
type stubUploader struct {
	uploads   int
	failFiles map[string]bool
}

func (u *stubUploader) Upload(_ context.Context, filename, _ string, body io.Reader) (string, error) {
	if u.failFiles[filename] {
		return "", errors.New("bucket unavailable")
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	u.uploads++
	return "https://cdn.example.com/" + filename, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubUploader) {
	t.Helper()

	repos := &repository.Repositories{User: memory.NewUserRepository()}
	services := service.NewServices(repos, testutil.TestConfig())
	uploader := &stubUploader{failFiles: map[string]bool{}}
	srv := httptest.NewServer(api.NewRouter(services, uploader))
	t.Cleanup(srv.Close)
	return srv, uploader
}

func registerForm(t *testing.T, username, email string, withAvatar, withCover bool) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("fullName", "Alice A"))
	require.NoError(t, mw.WriteField("email", email))
	require.NoError(t, mw.WriteField("username", username))
	require.NoError(t, mw.WriteField("password", "Secret123!"))
	if withAvatar {
		fw, err := mw.CreateFormFile("avatar", "avatar.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake-png-bytes"))
		require.NoError(t, err)
	}
	if withCover {
		fw, err := mw.CreateFormFile("coverImage", "cover.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake-png-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func registerUser(t *testing.T, srv *httptest.Server, username, email string) {
	t.Helper()

	body, contentType := registerForm(t, username, email, true, false)
	resp, err := http.Post(srv.URL+"/api/v1/auth/register", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func login(t *testing.T, srv *httptest.Server, identifier, password string) *http.Response {
	t.Helper()

	payload := fmt.Sprintf(`{"username":%q,"password":%q}`, identifier, password)
	resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestAuthHandler_Register(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := registerForm(t, "alice", "a@x.com", true, false)
	resp, err := http.Post(srv.URL+"/api/v1/auth/register", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "alice", decoded["username"])
	assert.Equal(t, "a@x.com", decoded["email"])
	assert.Equal(t, "https://cdn.example.com/avatar.png", decoded["avatarUrl"])

	// Secret-bearing fields never appear in the response.
	assert.NotContains(t, decoded, "passwordHash")
	assert.NotContains(t, decoded, "refreshToken")
	assert.NotContains(t, string(raw), "Secret123!")
}

func TestAuthHandler_Register_MissingAvatar(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := registerForm(t, "alice", "a@x.com", false, false)
	resp, err := http.Post(srv.URL+"/api/v1/auth/register", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthHandler_Register_Duplicate(t *testing.T) {
	srv, uploader := newTestServer(t)
	registerUser(t, srv, "alice", "a@x.com")
	uploadsAfterFirst := uploader.uploads

	// Same username, different email.
	body, contentType := registerForm(t, "alice", "different@x.com", true, false)
	resp, err := http.Post(srv.URL+"/api/v1/auth/register", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	// The doomed registration never reached object storage.
	assert.Equal(t, uploadsAfterFirst, uploader.uploads)
}

func TestAuthHandler_Register_BlankFieldSkipsUpload(t *testing.T) {
	srv, uploader := newTestServer(t)

	body, contentType := registerForm(t, "   ", "a@x.com", true, false)
	resp, err := http.Post(srv.URL+"/api/v1/auth/register", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, uploader.uploads)
}

func TestAuthHandler_Register_WithCoverImage(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := registerForm(t, "alice", "a@x.com", true, true)
	resp, err := http.Post(srv.URL+"/api/v1/auth/register", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var decoded struct {
		CoverImageURL string `json:"coverImageUrl"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "https://cdn.example.com/cover.png", decoded.CoverImageURL)
}

func TestAuthHandler_Register_UploadFailures(t *testing.T) {
	tests := []struct {
		name       string
		failFile   string
		withCover  bool
		wantStatus int
	}{
		{
			name:       "avatar upload failure",
			failFile:   "avatar.png",
			wantStatus: http.StatusInternalServerError,
		},
		{
			// A sent cover image that fails to upload must not silently
			// register the user without one.
			name:       "cover image upload failure",
			failFile:   "cover.png",
			withCover:  true,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, uploader := newTestServer(t)
			uploader.failFiles[tt.failFile] = true

			body, contentType := registerForm(t, "alice", "a@x.com", true, tt.withCover)
			resp, err := http.Post(srv.URL+"/api/v1/auth/register", contentType, body)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			// The user was not registered.
			loginResp := login(t, srv, "alice", "Secret123!")
			defer loginResp.Body.Close()
			assert.Equal(t, http.StatusNotFound, loginResp.StatusCode)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	srv, _ := newTestServer(t)
	registerUser(t, srv, "alice", "a@x.com")

	t.Run("wrong password", func(t *testing.T) {
		resp := login(t, srv, "alice", "wrong")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp := login(t, srv, "nobody", "Secret123!")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("success sets cookies and returns tokens", func(t *testing.T) {
		resp := login(t, srv, "alice", "Secret123!")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var decoded struct {
			User struct {
				Username string `json:"username"`
			} `json:"user"`
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
		assert.Equal(t, "alice", decoded.User.Username)
		assert.NotEmpty(t, decoded.AccessToken)
		assert.NotEmpty(t, decoded.RefreshToken)

		assert.Equal(t, decoded.AccessToken, cookieValue(resp, "accessToken"))
		assert.Equal(t, decoded.RefreshToken, cookieValue(resp, "refreshToken"))

		for _, c := range resp.Cookies() {
			assert.True(t, c.HttpOnly, "cookie %s must be httpOnly", c.Name)
			assert.True(t, c.Secure, "cookie %s must be secure", c.Name)
		}
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	srv, _ := newTestServer(t)
	registerUser(t, srv, "alice", "a@x.com")

	loginResp := login(t, srv, "alice", "Secret123!")
	defer loginResp.Body.Close()
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	refreshToken := cookieValue(loginResp, "refreshToken")
	require.NotEmpty(t, refreshToken)

	t.Run("no token", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/auth/refresh", "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("token from cookie rotates", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/auth/refresh", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refreshToken})

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var decoded struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
		assert.NotEmpty(t, decoded.AccessToken)
		assert.NotEqual(t, refreshToken, decoded.RefreshToken)

		// The rotated-out token is dead, from cookie or body alike.
		payload := fmt.Sprintf(`{"refreshToken":%q}`, refreshToken)
		replay, err := http.Post(srv.URL+"/api/v1/auth/refresh", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		defer replay.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)

		// The fresh token from the body still works.
		payload = fmt.Sprintf(`{"refreshToken":%q}`, decoded.RefreshToken)
		next, err := http.Post(srv.URL+"/api/v1/auth/refresh", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		defer next.Body.Close()
		assert.Equal(t, http.StatusOK, next.StatusCode)
	})
}

func TestAuthHandler_MeAndLogout(t *testing.T) {
	srv, _ := newTestServer(t)
	registerUser(t, srv, "alice", "a@x.com")

	loginResp := login(t, srv, "alice", "Secret123!")
	defer loginResp.Body.Close()
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	accessToken := cookieValue(loginResp, "accessToken")
	refreshToken := cookieValue(loginResp, "refreshToken")

	t.Run("me without token", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/auth/me")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me with bearer token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/auth/me", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var decoded struct {
			Username string `json:"username"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
		assert.Equal(t, "alice", decoded.Username)
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/auth/logout", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessToken})

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Both cookies are cleared.
		for _, c := range resp.Cookies() {
			assert.Empty(t, c.Value, "cookie %s should be cleared", c.Name)
		}

		// The still-unexpired refresh token no longer refreshes.
		payload := fmt.Sprintf(`{"refreshToken":%q}`, refreshToken)
		replay, err := http.Post(srv.URL+"/api/v1/auth/refresh", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		defer replay.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)
	})
}
