package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-guard/client"
	"github.com/jrsteele09/go-session-guard/credentials"
	credentialsrepofake "github.com/jrsteele09/go-session-guard/credentials/repofake"
	"github.com/jrsteele09/go-session-guard/internal/metrics"
	"github.com/jrsteele09/go-session-guard/navigation"
	"github.com/jrsteele09/go-session-guard/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/oauth2"
)

func accessToken(t *testing.T, ttl time.Duration, id string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(ttl).Unix(),
		"jti": id,
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return raw
}

type exchanger struct {
	calls   atomic.Int32
	refresh func() (*oauth2.Token, error)
}

func (e *exchanger) Refresh(context.Context, string) (*oauth2.Token, error) {
	e.calls.Add(1)
	if e.refresh == nil {
		return nil, errors.New("refresh rejected")
	}
	return e.refresh()
}

func (e *exchanger) Login(context.Context, string, string) (*oauth2.Token, error) {
	return nil, errors.New("login rejected")
}

type received struct {
	auth      string
	requestID string
	custom    string
	body      string
	query     url.Values
}

type testFixture struct {
	store     *credentials.Store
	exchanger *exchanger
	history   *navigation.History
	registry  *prometheus.Registry
	spans     *tracetest.SpanRecorder
	tokens    *token.Service
	client    *client.Client

	mu       sync.Mutex
	received []received
	respond  func(attempt int, w http.ResponseWriter)
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		store:     credentials.NewStore(credentialsrepofake.NewFakePersister()),
		exchanger: &exchanger{},
		history:   navigation.NewHistory(),
		registry:  prometheus.NewRegistry(),
		spans:     tracetest.NewSpanRecorder(),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.received = append(f.received, received{
			auth:      r.Header.Get("Authorization"),
			requestID: r.Header.Get(client.RequestIDHeader),
			custom:    r.Header.Get("X-Tenant"),
			body:      string(body),
			query:     r.URL.Query(),
		})
		attempt := len(f.received)
		respond := f.respond
		f.mu.Unlock()
		respond(attempt, w)
	}))
	t.Cleanup(srv.Close)

	m := metrics.New(f.registry)
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.spans)).Tracer("client_test")
	f.tokens = token.NewService(f.store, f.exchanger, token.WithMetrics(m))
	f.client = client.New(srv.URL+"/", f.tokens, f.store, navigation.New(navigation.WithLocation(f.history)),
		client.WithMetrics(m), client.WithTracer(tracer))
	return f
}

func (f *testFixture) login(t *testing.T, access string) {
	t.Helper()
	require.NoError(t, f.store.SetTokens(context.Background(), access, "refresh-1"))
}

// span returns the single request span recorded so far.
func (f *testFixture) span(t *testing.T) sdktrace.ReadOnlySpan {
	t.Helper()
	ended := f.spans.Ended()
	require.Len(t, ended, 1)
	return ended[0]
}

func hasEvent(span sdktrace.ReadOnlySpan, name string) bool {
	for _, e := range span.Events() {
		if e.Name == name {
			return true
		}
	}
	return false
}

func attributeValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func (f *testFixture) attempts() []received {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]received(nil), f.received...)
}

func respondJSON(status int, body string) func(int, http.ResponseWriter) {
	return func(_ int, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

type student struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestClient_Unauthenticated(t *testing.T) {
	f := setupTestFixture(t)
	f.respond = respondJSON(http.StatusOK, `[]`)

	err := f.client.Get(context.Background(), "/api/students/", nil, nil)
	require.ErrorIs(t, err, client.ErrAuthenticationRequired)
	require.Empty(t, f.attempts())
	require.Empty(t, f.history.Visits())
}

func TestClient_Success(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes json with the bearer token", func(t *testing.T) {
		f := setupTestFixture(t)
		access := accessToken(t, time.Hour, "a1")
		f.login(t, access)
		f.respond = respondJSON(http.StatusOK, `[{"id":1,"name":"Lena"}]`)

		var out []student
		err := f.client.Request(ctx, "api/students/", client.RequestOptions{
			Query: url.Values{"page": {"2"}},
			Headers: http.Header{
				"Authorization": {"Bearer forged"},
				"X-Tenant":      {"north"},
			},
		}, &out)
		require.NoError(t, err)
		require.Equal(t, []student{{ID: 1, Name: "Lena"}}, out)

		got := f.attempts()
		require.Len(t, got, 1)
		require.Equal(t, "Bearer "+access, got[0].auth)
		require.Equal(t, "north", got[0].custom)
		require.Equal(t, "2", got[0].query.Get("page"))
		require.NotEmpty(t, got[0].requestID)
	})

	t.Run("204 leaves out untouched", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, accessToken(t, time.Hour, "a1"))
		f.respond = func(_ int, w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }

		out := student{ID: 9, Name: "unchanged"}
		require.NoError(t, f.client.Delete(ctx, "/api/students/9/", &out))
		require.Equal(t, student{ID: 9, Name: "unchanged"}, out)
	})
}

func TestClient_RequestFailed(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, accessToken(t, time.Hour, "a1"))
	f.respond = respondJSON(http.StatusBadRequest, `{"name":["This field is required."]}`)

	err := f.client.Post(context.Background(), "/api/students/", map[string]string{}, nil)
	var reqErr *client.RequestFailedError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	require.Equal(t, `{"name":["This field is required."]}`, reqErr.Body)
	require.Len(t, f.attempts(), 1)
	require.Zero(t, f.exchanger.calls.Load())
	require.True(t, f.store.IsAuthenticated())
}

func TestClient_Replay(t *testing.T) {
	ctx := context.Background()

	t.Run("401 refreshes once and replays the same body", func(t *testing.T) {
		f := setupTestFixture(t)
		stale := accessToken(t, time.Hour, "revoked")
		fresh := accessToken(t, time.Hour, "fresh")
		f.login(t, stale)
		f.exchanger.refresh = func() (*oauth2.Token, error) { return &oauth2.Token{AccessToken: fresh}, nil }
		f.respond = func(attempt int, w http.ResponseWriter) {
			if attempt == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			respondJSON(http.StatusCreated, `{"id":3,"name":"Omar"}`)(attempt, w)
		}

		var out student
		require.NoError(t, f.client.Post(ctx, "/api/students/", student{Name: "Omar"}, &out))
		require.Equal(t, student{ID: 3, Name: "Omar"}, out)

		got := f.attempts()
		require.Len(t, got, 2)
		require.Equal(t, "Bearer "+stale, got[0].auth)
		require.Equal(t, "Bearer "+fresh, got[1].auth)
		require.Equal(t, got[0].body, got[1].body)
		require.JSONEq(t, `{"id":0,"name":"Omar"}`, got[1].body)
		require.NotEqual(t, got[0].requestID, got[1].requestID)
		require.Equal(t, int32(1), f.exchanger.calls.Load())
		require.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(`
# HELP sessionguard_replays_total Requests replayed after a 401 and a forced refresh
# TYPE sessionguard_replays_total counter
sessionguard_replays_total 1
`), "sessionguard_replays_total"))

		span := f.span(t)
		require.Equal(t, "sessionguard.request", span.Name())
		require.True(t, hasEvent(span, "forced_refresh"))
		replayed, ok := attributeValue(span, "sessionguard.replayed")
		require.True(t, ok)
		require.True(t, replayed.AsBool())
		status, ok := attributeValue(span, "http.response.status_code")
		require.True(t, ok)
		require.Equal(t, int64(http.StatusCreated), status.AsInt64())
		require.Equal(t, codes.Unset, span.Status().Code)
	})

	t.Run("401 after a completed refresh reuses the new token", func(t *testing.T) {
		f := setupTestFixture(t)
		stale := accessToken(t, time.Hour, "before")
		fresh := accessToken(t, time.Hour, "after")
		f.login(t, stale)
		f.respond = func(attempt int, w http.ResponseWriter) {
			if attempt == 1 {
				// Another request renewed the session while this one was in flight.
				if err := f.store.SetTokens(context.Background(), fresh, "refresh-2"); err != nil {
					t.Errorf("renew session: %v", err)
				}
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			respondJSON(http.StatusOK, `{"id":1,"name":"Lena"}`)(attempt, w)
		}

		var out student
		require.NoError(t, f.client.Get(ctx, "/api/students/1/", nil, &out))

		got := f.attempts()
		require.Len(t, got, 2)
		require.Equal(t, "Bearer "+stale, got[0].auth)
		require.Equal(t, "Bearer "+fresh, got[1].auth)
		require.Zero(t, f.exchanger.calls.Load())
		require.Equal(t, "refresh-2", f.store.RefreshToken())
	})

	t.Run("second 401 ends the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, accessToken(t, time.Hour, "a1"))
		f.exchanger.refresh = func() (*oauth2.Token, error) {
			return &oauth2.Token{AccessToken: accessToken(t, time.Hour, "a2")}, nil
		}
		f.respond = respondJSON(http.StatusUnauthorized, `{"detail":"Given token not valid for any token type"}`)

		err := f.client.Get(ctx, "/api/students/", nil, nil)
		var replayErr *client.ReplayFailedError
		require.ErrorAs(t, err, &replayErr)
		require.ErrorIs(t, err, client.ErrReplayFailed)
		require.Len(t, f.attempts(), 2)
		require.False(t, f.store.IsAuthenticated())
		require.Equal(t, navigation.LoginPath, f.history.Current())

		span := f.span(t)
		require.True(t, hasEvent(span, "forced_refresh"))
		require.True(t, hasEvent(span, "exception"))
		require.Equal(t, codes.Error, span.Status().Code)
		require.Contains(t, span.Status().Description, client.ErrReplayFailed.Error())
	})

	t.Run("failed forced refresh ends the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, accessToken(t, time.Hour, "a1"))
		f.respond = respondJSON(http.StatusUnauthorized, `{}`)

		err := f.client.Get(ctx, "/api/students/", nil, nil)
		var refreshErr *client.RefreshError
		require.ErrorAs(t, err, &refreshErr)
		require.Len(t, f.attempts(), 1)
		require.False(t, f.store.IsAuthenticated())
		require.Equal(t, []string{navigation.LoginPath}, f.history.Visits())
	})

	t.Run("replay failing with another status keeps the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t, accessToken(t, time.Hour, "a1"))
		f.exchanger.refresh = func() (*oauth2.Token, error) {
			return &oauth2.Token{AccessToken: accessToken(t, time.Hour, "a2")}, nil
		}
		f.respond = func(attempt int, w http.ResponseWriter) {
			if attempt == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
		}

		err := f.client.Get(ctx, "/api/students/", nil, nil)
		var reqErr *client.RequestFailedError
		require.ErrorAs(t, err, &reqErr)
		require.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
		require.True(t, f.store.IsAuthenticated())
		require.Empty(t, f.history.Visits())
	})
}

func TestClient_ExpiredTokenWithoutRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, accessToken(t, -time.Minute, "a1"))
	f.respond = respondJSON(http.StatusOK, `{}`)

	err := f.client.Get(context.Background(), "/api/students/", nil, nil)
	require.ErrorIs(t, err, client.ErrRefreshFailed)
	require.Empty(t, f.attempts())
	require.False(t, f.store.IsAuthenticated())
	require.Equal(t, navigation.LoginPath, f.history.Current())
}

func TestClient_TransportError(t *testing.T) {
	store := credentials.NewStore(credentialsrepofake.NewFakePersister())
	require.NoError(t, store.SetTokens(context.Background(), accessToken(t, time.Hour, "a1"), "refresh-1"))
	history := navigation.NewHistory()
	ex := &exchanger{}

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := client.New(srv.URL, token.NewService(store, ex), store, navigation.New(navigation.WithLocation(history)))

	err := c.Get(context.Background(), "/api/students/", nil, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, client.ErrRequestFailed)
	require.Zero(t, ex.calls.Load())
	require.True(t, store.IsAuthenticated())
	require.Empty(t, history.Visits())
}

func TestClient_ConcurrentRequestsShareRefresh(t *testing.T) {
	const callers = 8
	f := setupTestFixture(t)
	f.login(t, accessToken(t, time.Minute, "expiring"))
	fresh := accessToken(t, time.Hour, "fresh")
	release := make(chan struct{})
	f.exchanger.refresh = func() (*oauth2.Token, error) {
		<-release
		return &oauth2.Token{AccessToken: fresh}, nil
	}
	f.respond = respondJSON(http.StatusOK, `{"id":1,"name":"Lena"}`)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out student
			errs <- f.client.Get(context.Background(), "/api/students/1/", nil, &out)
		}()
	}
	require.Eventually(t, func() bool { return f.tokens.Waiting() == callers-1 }, time.Second, time.Millisecond)
	require.True(t, f.tokens.IsRefreshing())
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), f.exchanger.calls.Load())
	for _, r := range f.attempts() {
		require.Equal(t, "Bearer "+fresh, r.auth)
	}
}

func TestRequestOptions_BodyEncoding(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t, accessToken(t, time.Hour, "a1"))
	f.respond = respondJSON(http.StatusOK, `{}`)

	payload := map[string]any{"name": "Lena", "advisor": 4}
	require.NoError(t, f.client.Patch(context.Background(), "/api/students/1/", payload, nil))

	var sent map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(f.attempts()[0].body)).Decode(&sent))
	require.Equal(t, map[string]any{"name": "Lena", "advisor": float64(4)}, sent)
}
