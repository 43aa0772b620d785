package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"tfsrentals/internal/config"
	"tfsrentals/internal/http/handlers"
	applog "tfsrentals/internal/log"
	"tfsrentals/internal/mailer"
	"tfsrentals/internal/repos"
	"tfsrentals/internal/seed"
	"tfsrentals/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const cronSecret = "s3cret-cron"

type env struct {
	App   *fiber.App
	Deps  *handlers.Deps
	DB    *sqlx.DB
	Mail  *mailer.LogSender
	Files *storage.LocalStore
	Logs  *observer.ObservedLogs
}

func newEnv(t *testing.T, opts handlers.Options) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	core, logs := observer.New(zap.DebugLevel)
	lg := zap.New(core)
	applog.Use(lg)
	t.Cleanup(func() { applog.Use(nil) })

	files, err := storage.NewLocalStore(t.TempDir(), "http://api.test")
	require.NoError(t, err)
	sender := &mailer.LogSender{}

	cfg := config.Config{
		SiteURL:    "https://tfs.test",
		SiteName:   "TFS",
		PublicURL:  "http://api.test",
		AdminEmail: "desk@tfs.test",
		CronSecret: cronSecret,
	}
	deps, err := handlers.NewDeps(db, cfg, handlers.Infra{Files: files, Sender: sender, Log: lg})
	require.NoError(t, err)

	cat, err := seed.Default()
	require.NoError(t, err)
	s := &seed.Seeder{Cats: repos.NewCategoryRepo(db), Prods: repos.NewProductRepo(db), Kits: deps.Kits}
	_, err = s.Apply(context.Background(), cat)
	require.NoError(t, err)

	opts.Quiet = true
	return &env{App: handlers.NewApp(deps, opts), Deps: deps, DB: db, Mail: sender, Files: files, Logs: logs}
}

func (e *env) productID(t *testing.T, slug string) string {
	t.Helper()
	var id string
	require.NoError(t, e.DB.Get(&id, `SELECT id FROM equipment WHERE slug = ?`, slug))
	return id
}

// do sends a request with an optional JSON body and sid cookie.
func (e *env) do(t *testing.T, method, path string, body any, sid string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := e.App.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *env) login(t *testing.T, email string) string {
	t.Helper()
	resp := e.do(t, "POST", "/api/v1/auth/login", map[string]string{"email": email, "password": "Passw0rd!"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == "sid" {
			return c.Value
		}
	}
	t.Fatal("sid cookie missing")
	return ""
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func multipartBody(t *testing.T, field, filename string, content []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}
