package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/db"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/models"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/services/analyzer"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/store"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/utils"
)

const testSecret = "test-secret"

type stubAnalyzer struct {
	result analyzer.Result
	err    error
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ string, image io.Reader) (analyzer.Result, error) {
	_, _ = io.Copy(io.Discard, image)
	return s.result, s.err
}

type testEnv struct {
	app       *fiber.App
	gdb       *gorm.DB
	hub       *realtime.Hub
	uploadDir string
	google    *GoogleOAuthHandler
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newEnv wires the app the way main does. A nil client leaves the analysis
// module unavailable.
func newEnv(t *testing.T, client analyzer.Client) *testEnv {
	t.Helper()
	log := quietLogger()

	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "handlers.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	uploadDir := t.TempDir()
	hub := realtime.NewHub(log)
	go hub.Run()
	notifier := realtime.NewNotifier(hub, nil, log)

	accountSvc := accounts.NewService(store.NewAccountStore(gdb), utils.LegacyHasher{}, log)
	analyses := store.NewAnalysisStore(gdb)

	google := &GoogleOAuthHandler{
		Accounts:  accountSvc,
		JWTSecret: testSecret,
		Expires:   60,
		Log:       log,
	}

	routes := &Routes{
		JWTSecret: testSecret,
		Auth:      &AuthHandler{Accounts: accountSvc, Notifier: notifier, JWTSecret: testSecret, Expires: 60, Log: log},
		Google:    google,
		Dashboard: &DashboardHandler{Accounts: accountSvc, Analyses: analyses},
		Analyze: &AnalyzeHandler{
			Analyzer:  analyzer.NewService(client, nil, time.Minute, log),
			Analyses:  analyses,
			Notifier:  notifier,
			UploadDir: uploadDir,
			Log:       log,
		},
		Notifications: &NotificationHandler{Hub: hub, Log: log},
	}

	app := fiber.New()
	routes.Mount(app)
	return &testEnv{app: app, gdb: gdb, hub: hub, uploadDir: uploadDir, google: google}
}

func (e *testEnv) do(t *testing.T, req *http.Request, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) signup(t *testing.T, body map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp := e.do(t, req)
	return resp, decode(t, resp)
}

func (e *testEnv) login(t *testing.T, email, password, role string) *http.Response {
	t.Helper()
	form := url.Values{"email": {email}, "password": {password}, "role": {role}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return out
}

func sessionFrom(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == utils.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func sessionFor(t *testing.T, uid int, role string) *http.Cookie {
	t.Helper()
	tok, err := utils.SignJWT(testSecret, uid, role, 5)
	require.NoError(t, err)
	return &http.Cookie{Name: utils.SessionCookie, Value: tok}
}

var aliceSignup = map[string]string{
	"name": "Alice", "email": "a@x.com", "password": "p", "confirm_password": "p", "role": "patient",
}

func TestSignup_Scenario(t *testing.T) {
	e := newEnv(t, nil)

	resp, body := e.signup(t, aliceSignup)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Success", body["message"])
	assert.True(t, strings.HasSuffix(body["redirect_url"].(string), "dashboard?uid=10000"))
	sessionFrom(t, resp)

	resp, body = e.signup(t, map[string]string{
		"name": "Bob", "email": "b@x.com", "password": "q", "confirm_password": "q", "role": "doctor",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/doctor_dashboard?uid=10001", body["redirect_url"])

	carol := map[string]string{"name": "Carol", "email": "a@x.com", "password": "r", "confirm_password": "r", "role": "patient"}
	resp, body = e.signup(t, carol)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Email already registered.", body["message"])
}

func TestSignup_Rejections(t *testing.T) {
	e := newEnv(t, nil)

	mismatch := map[string]string{"name": "Alice", "email": "a@x.com", "password": "p", "confirm_password": "x"}
	resp, body := e.signup(t, mismatch)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Passwords do not match.", body["message"])

	resp, _ = e.signup(t, map[string]string{"email": "a@x.com", "password": "p", "confirm_password": "p"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp = e.do(t, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var n int64
	require.NoError(t, e.gdb.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSignup_NotifiesDoctors(t *testing.T) {
	e := newEnv(t, nil)
	doc := &realtime.Client{ID: uuid.NewString(), UID: 10500, Role: "doctor", Send: make(chan []byte, 4)}
	e.hub.RegisterClient(doc)
	require.Eventually(t, func() bool { return e.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	resp, _ := e.signup(t, aliceSignup)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	select {
	case msg := <-doc.Send:
		var ev realtime.Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, realtime.EventAccountRegistered, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("doctor was not notified")
	}
}

func TestLogin_Redirects(t *testing.T) {
	e := newEnv(t, nil)
	e.signup(t, aliceSignup)

	resp := e.login(t, "a@x.com", "p", "patient")
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard?uid=10000", resp.Header.Get("Location"))
	sessionFrom(t, resp)

	resp = e.login(t, "a@x.com", "p", "doctor")
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "Incorrect role selected for this account.", loc.Query().Get("error"))

	for _, pw := range []string{"wrong", ""} {
		resp = e.login(t, "a@x.com", pw, "patient")
		loc, err = url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "Invalid email or password.", loc.Query().Get("error"))
	}

	resp = e.login(t, "ghost@x.com", "p", "patient")
	loc, err = url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "Invalid email or password.", loc.Query().Get("error"))
}

func TestLogout_ClearsSession(t *testing.T) {
	e := newEnv(t, nil)
	resp := e.do(t, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == utils.SessionCookie {
			cleared = c.Value == "" && c.MaxAge < 0
		}
	}
	assert.True(t, cleared)
}

func TestDashboard(t *testing.T) {
	e := newEnv(t, nil)
	e.signup(t, aliceSignup)

	body := decode(t, e.get(t, "/dashboard?uid=10000"))
	assert.Equal(t, "Alice", body["user_name"])
	assert.Equal(t, float64(10000), body["uid"])
	assert.Nil(t, body["error"])

	body = decode(t, e.get(t, "/dashboard?uid=99999"))
	assert.Equal(t, "Anonymous", body["user_name"])
	assert.Equal(t, float64(99999), body["uid"])

	for _, path := range []string{"/dashboard", "/dashboard?uid=abc"} {
		body = decode(t, e.get(t, path))
		assert.Equal(t, "Anonymous", body["user_name"], path)
		assert.Nil(t, body["uid"], path)
	}

	body = decode(t, e.get(t, "/dashboard?error=oops"))
	assert.Equal(t, "oops", body["error"])
}

func TestDoctorDashboard_RequiresDoctorSession(t *testing.T) {
	e := newEnv(t, nil)
	e.signup(t, map[string]string{"name": "Dr Bob", "email": "b@x.com", "password": "q", "confirm_password": "q", "role": "doctor"})

	assert.Equal(t, fiber.StatusUnauthorized, e.get(t, "/doctor_dashboard?uid=10000").StatusCode)
	assert.Equal(t, fiber.StatusForbidden, e.get(t, "/doctor_dashboard?uid=10000", sessionFor(t, 10001, "patient")).StatusCode)

	resp := e.get(t, "/doctor_dashboard?uid=10000", sessionFor(t, 10000, "doctor"))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dr Bob", decode(t, resp)["user_name"])
}

func TestMe(t *testing.T) {
	e := newEnv(t, nil)
	resp, _ := e.signup(t, aliceSignup)
	cookie := sessionFrom(t, resp)

	body := decode(t, e.get(t, "/api/me", cookie))
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(10000), data["uid"])
	assert.Equal(t, "a@x.com", data["email"])
	assert.NotContains(t, data, "password")

	assert.Equal(t, fiber.StatusUnauthorized, e.get(t, "/api/me").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, e.get(t, "/api/me", sessionFor(t, 12345, "patient")).StatusCode)
}

func uploadRequest(t *testing.T, field, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, _ = part.Write([]byte(content))
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-prescription", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func assertUploadDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzePrescription_Unavailable(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, uploadRequest(t, "file", "rx.png", "pixels"))
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "AI module unavailable on this server.", body["message"])
	assert.Equal(t, []any{}, body["medications"])
	assert.Equal(t, []any{}, body["interactions"])
	assert.Equal(t, 0.0, body["accuracy_score"])

	health := decode(t, e.get(t, "/healthz"))
	assert.Equal(t, false, health["analyzer"])
}

func TestAnalyzePrescription_Success(t *testing.T) {
	client := &stubAnalyzer{result: analyzer.Result{
		"medications":    []any{"amoxicillin"},
		"interactions":   []any{},
		"accuracy_score": 0.92,
	}}
	e := newEnv(t, client)

	resp := e.do(t, uploadRequest(t, "file", "rx.png", "pixels"), sessionFor(t, 10000, "patient"))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, []any{"amoxicillin"}, body["medications"])
	assert.Equal(t, 0.92, body["accuracy_score"])
	assertUploadDirEmpty(t, e.uploadDir)

	var saved models.PrescriptionAnalysis
	require.NoError(t, e.gdb.First(&saved).Error)
	require.NotNil(t, saved.UID)
	assert.Equal(t, 10000, *saved.UID)
	assert.Equal(t, "rx.png", saved.FileName)
	assert.Equal(t, 0.92, saved.AccuracyScore)

	list := decode(t, e.get(t, "/api/analyses", sessionFor(t, 10000, "patient")))
	assert.Len(t, list["data"], 1)
	list = decode(t, e.get(t, "/api/analyses", sessionFor(t, 10001, "patient")))
	assert.Len(t, list["data"], 0)

	health := decode(t, e.get(t, "/healthz"))
	assert.Equal(t, true, health["analyzer"])
}

func TestAnalyzePrescription_AnonymousUpload(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{result: analyzer.Result{"accuracy_score": 0.5}})

	resp := e.do(t, uploadRequest(t, "file", "rx.png", "pixels"))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var saved models.PrescriptionAnalysis
	require.NoError(t, e.gdb.First(&saved).Error)
	assert.Nil(t, saved.UID)
}

func TestAnalyzePrescription_MissingFile(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{})

	resp := e.do(t, uploadRequest(t, "", "", ""))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzePrescription_ProcessingError(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{err: errors.New("model crashed")})

	resp := e.do(t, uploadRequest(t, "file", "../../etc/rx.png", "pixels"))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Error processing image.", decode(t, resp)["message"])
	assertUploadDirEmpty(t, e.uploadDir)
}

func TestGoogle_DisabledWithoutClientID(t *testing.T) {
	e := newEnv(t, nil)
	assert.Equal(t, fiber.StatusNotFound, e.get(t, "/auth/google/start").StatusCode)
	assert.Equal(t, fiber.StatusNotFound, e.get(t, "/auth/google/callback?code=c&state=s").StatusCode)
}

func TestGoogle_Start(t *testing.T) {
	e := newEnv(t, nil)
	e.google.GoogleClientID = "client-id"
	e.google.GoogleRedirect = "http://localhost/auth/google/callback"

	resp := e.get(t, "/auth/google/start")
	assert.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", loc.Host)
	assert.Equal(t, "client-id", loc.Query().Get("client_id"))
	assert.NotEmpty(t, loc.Query().Get("state"))
}

func TestGoogle_Callback(t *testing.T) {
	e := newEnv(t, nil)
	e.google.GoogleClientID = "client-id"
	e.signup(t, aliceSignup)

	emails := map[string]string{"known": "a@x.com", "unknown": "ghost@x.com"}
	e.google.FetchEmail = func(_ context.Context, code string) (string, error) {
		if email, ok := emails[code]; ok {
			return email, nil
		}
		return "", errors.New("bad code")
	}
	state := &http.Cookie{Name: "oauth_state", Value: "st"}

	resp := e.get(t, "/auth/google/callback?code=known&state=other", state)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = e.get(t, "/auth/google/callback?code=bogus&state=st", state)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = e.get(t, "/auth/google/callback?code=unknown&state=st", state)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/signup?error="))

	var n int64
	require.NoError(t, e.gdb.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	resp = e.get(t, "/auth/google/callback?code=known&state=st", state)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard?uid=10000", resp.Header.Get("Location"))
	sessionFrom(t, resp)
}

func TestNotifications_RequiresSessionAndUpgrade(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, fiber.StatusUnauthorized, e.get(t, "/ws/notifications").StatusCode)
	assert.Equal(t, fiber.StatusUpgradeRequired, e.get(t, "/ws/notifications", sessionFor(t, 10000, "patient")).StatusCode)
}

func TestPages_EchoRedirectError(t *testing.T) {
	e := newEnv(t, nil)
	e.signup(t, aliceSignup)

	resp := e.login(t, "a@x.com", "wrong", "patient")
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	page := e.get(t, resp.Header.Get("Location"))
	assert.Equal(t, fiber.StatusOK, page.StatusCode)
	body := decode(t, page)
	assert.Equal(t, "Anonymous", body["user_name"])
	assert.Nil(t, body["uid"])
	assert.Equal(t, "Invalid email or password.", body["error"])

	body = decode(t, e.get(t, "/signup?error="+url.QueryEscape("No account for this Google email.")))
	assert.Equal(t, "No account for this Google email.", body["error"])

	for _, path := range []string{"/", "/login", "/signup"} {
		resp := e.get(t, path)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
		body := decode(t, resp)
		assert.Equal(t, "Anonymous", body["user_name"], path)
		assert.Nil(t, body["error"], path)
	}
}

func TestSignup_StoreFailureIsInternalError(t *testing.T) {
	e := newEnv(t, nil)
	sqlDB, err := e.gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	resp, body := e.signup(t, aliceSignup)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error during registration.", body["message"])
	assert.Equal(t, false, body["success"])
	for _, c := range resp.Cookies() {
		assert.NotEqual(t, utils.SessionCookie, c.Name)
	}
}
