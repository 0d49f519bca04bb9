package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/Cognio-so/agt-tester/internal/tokens"
	"github.com/Cognio-so/agt-tester/model"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignupHandler(t *testing.T) {
	f := newFixture(t)
	app := newApp()
	app.Post("/signup", Signup(f.svc))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/signup", SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Signup successful. Please verify your email.", body["message"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/signup", SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body = decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "User already exists", body["message"])
}

func TestLoginHandler(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "Ada", "ada@example.com", model.RoleAdmin)
	app := newApp()
	app.Post("/login", Login(f.svc))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/login", LoginRequest{Email: "ada@example.com", Password: "secret1"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	cookie := findCookie(resp, tokens.RefreshCookie)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	body := decode(t, resp)
	assert.Equal(t, "Login successful", body["message"])
	assert.NotEmpty(t, body["accessToken"])
	assert.NotContains(t, body, "refreshToken")

	user := body["user"].(map[string]interface{})
	assert.Equal(t, u.Key, user["_id"])
	assert.Equal(t, "admin", user["role"])
	assert.Equal(t, true, user["isVerified"])
	assert.NotContains(t, user, "password")

	userID, err := f.svc.tokens.VerifyAccessToken(body["accessToken"].(string))
	require.NoError(t, err)
	assert.Equal(t, u.Key, userID)

	stored, err := f.store.FindUserByID(context.Background(), u.Key)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastActive)
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "Ada", "ada@example.com", model.RoleUser)
	app := newApp()
	app.Post("/login", Login(f.svc))

	for _, req := range []LoginRequest{
		{Email: "ada@example.com", Password: "wrong-one"},
		{Email: "nobody@example.com", Password: "secret1"},
	} {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/login", req))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid credentials", decode(t, resp)["message"])
		assert.Nil(t, findCookie(resp, tokens.RefreshCookie))
	}
}

func TestRefreshTokenHandler(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "Ada", "ada@example.com", model.RoleUser)
	app := newApp()
	app.Post("/login", Login(f.svc))
	app.Post("/refresh-token", RefreshToken(f.svc))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/refresh-token", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Refresh token not found", decode(t, resp)["message"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/login", LoginRequest{Email: "ada@example.com", Password: "secret1"}))
	require.NoError(t, err)
	refresh := findCookie(resp, tokens.RefreshCookie)
	require.NotNil(t, refresh)

	req := jsonRequest(http.MethodPost, "/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: tokens.RefreshCookie, Value: refresh.Value})
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	access := decode(t, resp)["accessToken"].(string)
	userID, err := f.svc.tokens.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, u.Key, userID)

	req = jsonRequest(http.MethodPost, "/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: tokens.RefreshCookie, Value: "tampered"})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	cleared := findCookie(resp, tokens.RefreshCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	// a valid token for a removed user
	_, err = f.store.DeleteUserCascade(context.Background(), u.Key)
	require.NoError(t, err)
	req = jsonRequest(http.MethodPost, "/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: tokens.RefreshCookie, Value: refresh.Value})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "User not found for refresh token", decode(t, resp)["message"])
}

func TestLogoutHandler(t *testing.T) {
	f := newFixture(t)
	app := newApp()
	app.Post("/logout", Logout(f.svc))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	cookie := findCookie(resp, tokens.RefreshCookie)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Equal(t, "Logged out successfully", decode(t, resp)["message"])
}

func TestRequireAuthAndRole(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "Ada", "ada@example.com", model.RoleUser)
	admin := f.addUser(t, "Root", "root@example.com", model.RoleAdmin)

	app := newApp()
	app.Get("/me", RequireAuth(f.svc), Me(f.svc))
	app.Get("/admin", RequireAuth(f.svc), RequireRole(model.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	get := func(path, token string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, fiber.StatusUnauthorized, get("/me", "").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, get("/me", "not-a-jwt").StatusCode)

	resp := get("/me", f.accessToken(t, user))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, user.Key, body["_id"])
	assert.Equal(t, "ada@example.com", body["email"])
	assert.NotContains(t, body, "password")

	resp = get("/admin", f.accessToken(t, user))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Not authorized to access this resource", decode(t, resp)["message"])

	assert.Equal(t, fiber.StatusOK, get("/admin", f.accessToken(t, admin)).StatusCode)
}

func profileImageRequest(t *testing.T, token, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPatch, "/profile-picture", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUpdateProfilePictureHandler(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "Ada", "ada@example.com", model.RoleUser)
	token := f.accessToken(t, u)

	app := newApp()
	app.Patch("/profile-picture", RequireAuth(f.svc), UpdateProfilePicture(f.svc))

	resp, err := app.Test(profileImageRequest(t, token, "other", "me.png", "image/png", []byte("png")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No image file provided.", decode(t, resp)["message"])

	resp, err = app.Test(profileImageRequest(t, token, "profileImage", "notes.txt", "text/plain", []byte("hi")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid file type. Please upload an image.", decode(t, resp)["message"])

	resp, err = app.Test(profileImageRequest(t, token, "profileImage", "me.png", "image/png", []byte("png")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Profile picture updated successfully.", body["message"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "https://cdn.example.com/profile-pics/"+u.Key+"/me.png", user["profilePic"])
}

func TestAPIKeyHandlers(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "Ada", "ada@example.com", model.RoleUser)
	token := f.accessToken(t, u)

	app := newApp()
	app.Get("/api-keys", RequireAuth(f.svc), GetAPIKeys(f.svc))
	app.Post("/api-keys", RequireAuth(f.svc), SaveAPIKeys(f.svc))

	req := jsonRequest(http.MethodPost, "/api-keys", map[string]interface{}{"apiKeys": map[string]string{"openai": "sk-1"}})
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "API keys saved successfully", decode(t, resp)["message"])

	req = httptest.NewRequest(http.MethodGet, "/api-keys", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, map[string]interface{}{"openai": "sk-1"}, body["apiKeys"])
}

type fakeGoogle struct {
	profile GoogleProfile
	err     error
}

func (g *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (g *fakeGoogle) Profile(_ context.Context, code string) (GoogleProfile, error) {
	if code != "good-code" {
		return GoogleProfile{}, errors.New("bad code")
	}
	return g.profile, g.err
}

func googleApp(f *fixture, g GoogleProvider) *fiber.App {
	app := newApp()
	app.Get("/google", GoogleAuth(f.svc, g))
	app.Get("/google/callback", GoogleCallback(f.svc, g))
	return app
}

func callback(t *testing.T, app *fiber.App, query, state string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/google/callback?"+query, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: state})
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestGoogleAuth_SetsStateAndRedirects(t *testing.T) {
	f := newFixture(t)
	app := googleApp(f, &fakeGoogle{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/google", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)

	state := findCookie(resp, oauthStateCookie)
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)
	assert.Equal(t, "https://accounts.example.com/auth?state="+state.Value, resp.Header.Get("Location"))
}

func TestGoogleCallback_CreatesUserAndRedirects(t *testing.T) {
	f := newFixture(t)
	g := &fakeGoogle{profile: GoogleProfile{ID: "g-1", Email: "Grace@Example.com", Name: "Grace", Picture: "https://pics/g.png"}}
	app := googleApp(f, g)

	resp := callback(t, app, "code=good-code&state=s1", "s1")
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.test", loc.Host)
	assert.Equal(t, "/auth/callback", loc.Path)

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(loc.Query().Get("user")), &summary))
	assert.Equal(t, "grace@example.com", summary["email"])
	assert.Equal(t, "https://pics/g.png", summary["profilePic"])

	userID, err := f.svc.tokens.VerifyAccessToken(loc.Query().Get("accessToken"))
	require.NoError(t, err)
	assert.Equal(t, summary["_id"], userID)
	assert.NotNil(t, findCookie(resp, tokens.RefreshCookie))

	cleared := findCookie(resp, oauthStateCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, "/", cleared.Path)
	assert.True(t, cleared.Expires.Before(f.svc.now()), "state cookie must be expired")

	stored, err := f.store.FindUserByGoogleID(context.Background(), "g-1")
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.False(t, stored.HasPassword())

	// second sign-in reuses the account
	resp = callback(t, app, "code=good-code&state=s2", "s2")
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	users, err := f.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestGoogleCallback_LinksExistingEmail(t *testing.T) {
	f := newFixture(t)
	existing := f.addUser(t, "Ada", "ada@example.com", model.RoleUser)
	app := googleApp(f, &fakeGoogle{profile: GoogleProfile{ID: "g-ada", Email: "ada@example.com", Name: "Ada G"}})

	resp := callback(t, app, "code=good-code&state=s", "s")
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	linked, err := f.store.FindUserByGoogleID(context.Background(), "g-ada")
	require.NoError(t, err)
	assert.Equal(t, existing.Key, linked.Key)
	assert.True(t, linked.HasPassword())
}

func TestGoogleCallback_Failures(t *testing.T) {
	f := newFixture(t)
	app := googleApp(f, &fakeGoogle{profile: GoogleProfile{ID: "g", Email: "g@example.com"}})

	tests := []struct {
		name, query, state, reason string
	}{
		{"consent denied", "error=access_denied&state=s", "s", "google_auth_failed"},
		{"state mismatch", "code=good-code&state=other", "s", "google_auth_failed"},
		{"missing state cookie", "code=good-code&state=s", "", "google_auth_failed"},
		{"exchange fails", "code=bad-code&state=s", "s", "google_auth_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callback(t, app, tt.query, tt.state)
			assert.Equal(t, fiber.StatusFound, resp.StatusCode)
			assert.Equal(t, "http://app.test/login?error="+tt.reason, resp.Header.Get("Location"))
			raw, _ := io.ReadAll(resp.Body)
			assert.False(t, strings.HasPrefix(string(raw), "{"))
		})
	}
}
