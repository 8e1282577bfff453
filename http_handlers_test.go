package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanshub16/upnext-jukebox/gateway"
	"github.com/himanshub16/upnext-jukebox/jukebox"
)

var testSecret = []byte("test-secret")

type fakeService struct {
	mu sync.Mutex

	state     jukebox.State
	results   []jukebox.Candidate
	searchErr error
	submitErr error
	skipErr   error
	skipped   jukebox.Song
	volume    float64

	lastWho   jukebox.Requester
	lastQuery string
	lastLimit int
	submitted []string
}

var _ jukebox.Service = (*fakeService)(nil)

func (f *fakeService) Search(_ context.Context, who jukebox.Requester, query string, limit int) ([]jukebox.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastWho, f.lastQuery, f.lastLimit = who, query, limit
	return f.results, f.searchErr
}

func (f *fakeService) Submit(_ context.Context, who jukebox.Requester, input, addedBy string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastWho = who
	f.submitted = append(f.submitted, input)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return fmt.Sprintf("Added %q to the queue at position 1.", input), nil
}

func (f *fakeService) State() jukebox.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	s.Volume = f.volume
	return s
}

func (f *fakeService) WithState(fn func(jukebox.State)) {
	fn(f.State())
}

func (f *fakeService) Sync() jukebox.SyncReport {
	return jukebox.SyncReport{ServerTime: 42}
}

func (f *fakeService) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return jukebox.ErrInvalidInput
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	return nil
}

func (f *fakeService) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeService) Skip(who jukebox.Requester) (jukebox.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastWho = who
	return f.skipped, f.skipErr
}

func newTestRouter(t *testing.T, svc jukebox.Service) (*echo.Echo, *gateway.Hub) {
	t.Helper()
	hub := gateway.NewHub(gateway.Config{Buffer: 16, Logger: zerolog.Nop()})
	registerJukeboxEvents(hub, svc, zerolog.Nop())
	r := NewHTTPRouter(RouterConfig{
		Service:      svc,
		Hub:          hub,
		JWTSecret:    testSecret,
		TokenTTL:     time.Hour,
		MusicDir:     t.TempDir(),
		PublicPrefix: "/public/music",
		Logger:       zerolog.Nop(),
	})
	t.Cleanup(hub.Shutdown)
	return r, hub
}

func tokenFor(t *testing.T, u User) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, u.claims(time.Hour))
	s, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func do(r *echo.Echo, method, target string, form url.Values, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	r, _ := newTestRouter(t, &fakeService{})

	rec := do(r, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I am up and running!", rec.Body.String())
}

func TestLoginIssuesUsableToken(t *testing.T) {
	svc := &fakeService{volume: 0.5}
	r, _ := newTestRouter(t, svc)

	rec := do(r, http.MethodPost, "/api/login", url.Values{"user_id": {"u1"}, "username": {"Ann"}}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)

	rec = do(r, http.MethodGet, "/api/jukebox/state", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Nil(t, body["currentSong"])
	assert.Equal(t, 0.5, body["volume"])
}

func TestLoginWithoutUserIDGeneratesOne(t *testing.T) {
	r, _ := newTestRouter(t, &fakeService{})

	rec := do(r, http.MethodPost, "/api/login", url.Values{"username": {"Guest"}}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	user, _ := decode(t, rec)["user"].(map[string]interface{})
	assert.NotEmpty(t, user["user_id"])
	assert.Equal(t, "Guest", user["username"])
}

func TestJukeboxRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t, &fakeService{})

	rec := do(r, http.MethodGet, "/api/jukebox/state", nil, "")
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/api/jukebox/state", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearchPassesRequesterAndLimit(t *testing.T) {
	svc := &fakeService{results: []jukebox.Candidate{{ID: "a", Title: "Song A"}}}
	r, _ := newTestRouter(t, svc)

	rec := do(r, http.MethodGet, "/api/jukebox/search?q=daft+punk&limit=3", nil, tokenFor(t, User{UserID: "u1", Username: "Ann"}))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["results"], 1)
	assert.Equal(t, jukebox.Requester{ID: "u1", Name: "Ann"}, svc.lastWho)
	assert.Equal(t, "daft punk", svc.lastQuery)
	assert.Equal(t, 3, svc.lastLimit)
}

func TestSearchRejectsBadLimit(t *testing.T) {
	r, _ := newTestRouter(t, &fakeService{})

	rec := do(r, http.MethodGet, "/api/jukebox/search?q=abc&limit=many", nil, tokenFor(t, User{UserID: "u1"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFailuresCarryReasonAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"rate limited", fmt.Errorf("%w: search", jukebox.ErrRateLimited), http.StatusTooManyRequests, jukebox.Reason(jukebox.ErrRateLimited)},
		{"invalid", jukebox.WithReason(jukebox.ErrInvalidInput, "Type at least 2 characters."), http.StatusBadRequest, "Type at least 2 characters."},
		{"resolution", jukebox.ErrResolutionFailed, http.StatusBadGateway, jukebox.Reason(jukebox.ErrResolutionFailed)},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, jukebox.Reason(fmt.Errorf("boom"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, &fakeService{searchErr: tt.err})

			rec := do(r, http.MethodGet, "/api/jukebox/search?q=abc", nil, tokenFor(t, User{UserID: "u1"}))
			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.reason, body["error"])
		})
	}
}

func TestAddSongPrefersURL(t *testing.T) {
	svc := &fakeService{}
	r, _ := newTestRouter(t, svc)
	token := tokenFor(t, User{UserID: "u1", Username: "Ann"})

	rec := do(r, http.MethodPost, "/api/jukebox/songs", url.Values{
		"url": {"https://youtu.be/dQw4w9WgXcQ"},
		"id":  {"ignored"},
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])

	rec = do(r, http.MethodPost, "/api/jukebox/songs", url.Values{"id": {"dQw4w9WgXcQ"}}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"}, svc.submitted)
}

func TestAddSongAcquisitionFailure(t *testing.T) {
	svc := &fakeService{submitErr: fmt.Errorf("%w: exit 1", jukebox.ErrAcquisitionFailed)}
	r, _ := newTestRouter(t, svc)

	rec := do(r, http.MethodPost, "/api/jukebox/songs", url.Values{"id": {"dQw4w9WgXcQ"}}, tokenFor(t, User{UserID: "u1"}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, jukebox.Reason(jukebox.ErrAcquisitionFailed), decode(t, rec)["error"])
}

func TestVolumeRoutes(t *testing.T) {
	svc := &fakeService{volume: 0.5}
	r, _ := newTestRouter(t, svc)
	token := tokenFor(t, User{UserID: "u1"})

	rec := do(r, http.MethodPost, "/api/jukebox/volume", url.Values{"volume": {"0.25"}}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/api/jukebox/volume", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.25, decode(t, rec)["volume"])

	rec = do(r, http.MethodPost, "/api/jukebox/volume", url.Values{"volume": {"loud"}}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/api/jukebox/volume", url.Values{"volume": {"2"}}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0.25, svc.Volume())
}

func TestSkip(t *testing.T) {
	svc := &fakeService{skipErr: jukebox.ErrNothingPlaying}
	r, _ := newTestRouter(t, svc)
	token := tokenFor(t, User{UserID: "u1"})

	rec := do(r, http.MethodPost, "/api/jukebox/skip", nil, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	svc.mu.Lock()
	svc.skipErr = nil
	svc.skipped = jukebox.Song{ID: "a", Title: "Song A", Duration: 61}
	svc.mu.Unlock()

	rec = do(r, http.MethodPost, "/api/jukebox/skip", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	skipped, _ := decode(t, rec)["skipped"].(map[string]interface{})
	assert.Equal(t, "1:01", skipped["duration"])
}

func TestSyncRoute(t *testing.T) {
	r, _ := newTestRouter(t, &fakeService{})

	rec := do(r, http.MethodGet, "/api/jukebox/sync", nil, tokenFor(t, User{UserID: "u1"}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Nil(t, body["song"])
	assert.Equal(t, float64(42), body["serverTime"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(jukebox.ErrInvalidDuration))
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("%w: %w", jukebox.ErrAcquisitionFailed, context.DeadlineExceeded)))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(jukebox.WithReason(jukebox.ErrRateLimited, "slow down")))
}
