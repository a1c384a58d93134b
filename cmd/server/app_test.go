package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/api"
	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/store/memstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(summarizerURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "debug", Role: "all", ShutdownTimeout: time.Second},
		Auth: config.AuthConfig{
			JWTSecret:                   "test-secret-that-is-at-least-32-characters",
			TokenLifetimeMinutes:        60,
			RefreshTokenLifetimeMinutes: 24 * 60,
			BCryptCost:                  4,
		},
		Summarizer: config.SummarizerConfig{
			Provider:  "huggingface",
			APIURL:    summarizerURL,
			APIToken:  "hf_testtoken",
			Model:     "facebook/bart-large-cnn",
			MaxLength: 100,
		},
		Retry:   config.RetryConfig{MaxAttempts: 3, AttemptTimeout: 5 * time.Second},
		Credits: config.CreditsConfig{JobCost: 10, Baseline: 100, ResetSchedule: "@daily"},
		Dispatch: config.DispatchConfig{
			Backend:         "memory",
			WorkerCount:     2,
			QueueSize:       10,
			RetryDelay:      10 * time.Millisecond,
			StuckJobAge:     30 * time.Minute,
			PendingSweepAge: 5 * time.Minute,
			ReaperSchedule:  "@every 5m",
		},
		Redis: config.RedisConfig{LockTTL: time.Minute},
	}
}

func memStores(db *memstore.DB) stores {
	return stores{
		users:         db.Users(),
		jobs:          db.Jobs(),
		notifications: db.Notifications(),
		tx:            db,
	}
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestApplication_SubmitAndComplete(t *testing.T) {
	hf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"summary_text":"A fox had a sunny day"}]`))
	}))
	t.Cleanup(hf.Close)

	cfg := testConfig(hf.URL)
	app, err := newApplication(context.Background(), cfg, discardLogger(), memStores(memstore.New()))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	srv := httptest.NewServer(app.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = app.pool.Run(ctx)
	}()

	c := &client{t: t, base: srv.URL}
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/auth/signup", api.SignupRequest{
		Username: "alice", Email: "alice@example.com", Password: "secret123",
	}, nil))
	var tok api.TokenResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/auth/token", api.TokenRequest{
		Username: "alice", Password: "secret123",
	}, &tok))
	c.token = tok.AccessToken

	var job api.JobResponse
	require.Equal(t, http.StatusAccepted, c.do(http.MethodPost, "/api/jobs", api.CreateJobRequest{
		Text: "The quick brown fox jumps over the lazy dog. It was a sunny day.",
	}, &job))

	require.Eventually(t, func() bool {
		var got api.JobResponse
		c.do(http.MethodGet, fmt.Sprintf("/api/jobs/%d", job.ID), nil, &got)
		return got.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	var done api.JobResponse
	c.do(http.MethodGet, fmt.Sprintf("/api/jobs/%d", job.ID), nil, &done)
	require.NotNil(t, done.OutputText)
	assert.Equal(t, "A fox had a sunny day", *done.OutputText)

	var credits api.CreditsResponse
	c.do(http.MethodGet, "/api/credits", nil, &credits)
	assert.Equal(t, 90, credits.Credits)

	var notes []api.NotificationResponse
	c.do(http.MethodGet, "/api/notifications", nil, &notes)
	require.Len(t, notes, 2)
	assert.Equal(t, "Your 1st job was submitted! Credits will be deducted upon completion.", notes[0].Message)
	assert.Equal(t, "success", notes[1].Type)
	assert.Equal(t, "Your 1st job completed! Credits remaining: 90", notes[1].Message)
}

func TestApplication_APIRoleSkipsWorkers(t *testing.T) {
	t.Parallel()
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Server.Role = "api"

	app, err := newApplication(context.Background(), cfg, discardLogger(), memStores(memstore.New()))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.NotNil(t, app.handler)
	assert.Nil(t, app.pool)
	assert.Nil(t, app.scheduler)
}

func TestNewSummarizer_UnknownProvider(t *testing.T) {
	t.Parallel()
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Summarizer.Provider = "openai"

	_, err := newSummarizer(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "unsupported summarizer provider")
}

func TestNewDispatch_RabbitMQRequiresURL(t *testing.T) {
	t.Parallel()
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Dispatch.Backend = "rabbitmq"

	_, err := newDispatch(cfg, true, discardLogger())
	assert.Error(t, err)
}

func TestNewApplication_InvalidSchedule(t *testing.T) {
	t.Parallel()
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Credits.ResetSchedule = "whenever"

	_, err := newApplication(context.Background(), cfg, discardLogger(), memStores(memstore.New()))
	assert.ErrorContains(t, err, "credit-reset")
}
