package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/speechgateway/internal/api/handlers"
	"github.com/nikhilbhutani/speechgateway/internal/apierror"
	"github.com/nikhilbhutani/speechgateway/internal/auth"
	"github.com/nikhilbhutani/speechgateway/internal/cache"
	"github.com/nikhilbhutani/speechgateway/internal/config"
	"github.com/nikhilbhutani/speechgateway/internal/metrics"
	"github.com/nikhilbhutani/speechgateway/internal/speech"
	"github.com/nikhilbhutani/speechgateway/internal/stt"
	"github.com/nikhilbhutani/speechgateway/internal/usage"
)

const testKey = "test-key-123"

var fiveLanguages = []string{"zh-CN", "en-US", "ja-JP", "ko-KR", "yue-HK"}

type fakeEngine struct {
	name    string
	results []stt.Result
	err     error
	calls   atomic.Int32
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Recognize(ctx context.Context, req stt.Request) ([]stt.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	return []stt.Result{{Alternatives: []stt.Alternative{
		{Transcript: "transcript in " + req.LanguageCode, Confidence: 0.93},
	}}}, nil
}

type memRecorder struct {
	mu     sync.Mutex
	events []usage.Event
}

func (m *memRecorder) Record(_ context.Context, ev usage.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Recognition: config.RecognitionConfig{
			MaxAudioBytes: config.DefaultMaxAudioBytes,
			Timeout:       5 * time.Second,
			MaxConcurrent: 4,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, engine stt.Recognizer, mutate ...func(*Dependencies)) (*Router, *httptest.Server) {
	t.Helper()

	var bindings []speech.Binding
	for _, lang := range fiveLanguages {
		bindings = append(bindings, speech.Binding{
			Language:   lang,
			Encodings:  []speech.Encoding{speech.EncodingLinear16, speech.EncodingFLAC},
			Recognizer: engine,
		})
	}
	registry, err := speech.NewRegistry(bindings)
	require.NoError(t, err)

	deps := Dependencies{
		Keys:     auth.NewKeySet([]string{testKey}),
		Registry: registry,
		Metrics:  metrics.New(),
	}
	for _, m := range mutate {
		m(&deps)
	}

	rt, err := NewRouter(cfg, deps)
	require.NoError(t, err)
	srv := httptest.NewServer(rt.Setup())
	t.Cleanup(func() {
		srv.Close()
		rt.Close()
	})
	return rt, srv
}

func do(t *testing.T, method, url, authz string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func testKeyID(t *testing.T) string {
	t.Helper()
	p, err := auth.NewKeySet([]string{testKey}).Authenticate("Bearer " + testKey)
	require.NoError(t, err)
	return p.KeyID
}

func recognize(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	return do(t, http.MethodPost, srv.URL+"/recognize", "Bearer "+testKey, strings.NewReader(body))
}

// serveLocal runs the handler without a network hop; used for multi-megabyte
// bodies the server may stop reading early.
func serveLocal(srv *httptest.Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/recognize", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Config.Handler.ServeHTTP(rec, req)
	return rec
}

func recorderEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apierror.Body {
	t.Helper()
	var env apierror.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func requestBody(lang, encoding string, audio []byte) string {
	return fmt.Sprintf(`{"config":{"encoding":%q,"sampleRateHertz":16000,"languageCode":%q},"audio":{"content":%q}}`,
		encoding, lang, base64.StdEncoding.EncodeToString(audio))
}

func decodeEnvelope(t *testing.T, resp *http.Response) apierror.Body {
	t.Helper()
	var env apierror.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env.Error
}

func pcm(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestAuth_EveryEndpointRequiresKey(t *testing.T) {
	engine := &fakeEngine{name: "fake"}
	_, srv := newTestRouter(t, testConfig(), engine)

	routes := []struct {
		method, path string
	}{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/readyz"},
		{http.MethodGet, "/metrics"},
		{http.MethodPost, "/recognize"},
		{http.MethodGet, "/does-not-exist"},
		{http.MethodDelete, "/recognize"},
	}
	credentials := []string{"", "Basic dXNlcjpwYXNz", "Bearer wrong-key", "Bearer"}

	for _, route := range routes {
		for _, cred := range credentials {
			t.Run(route.method+" "+route.path+" "+cred, func(t *testing.T) {
				var body io.Reader
				if route.method == http.MethodPost {
					body = strings.NewReader(requestBody("zh-CN", "LINEAR16", pcm(64)))
				}
				resp := do(t, route.method, srv.URL+route.path, cred, body)
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
				env := decodeEnvelope(t, resp)
				assert.Equal(t, 401, env.Code)
				assert.Equal(t, "UNAUTHENTICATED", env.Status)
				assert.NotEmpty(t, env.Message)
			})
		}
	}
	assert.Zero(t, engine.calls.Load())
}

func TestHealth(t *testing.T) {
	_, srv := newTestRouter(t, testConfig(), &fakeEngine{name: "fake"})

	resp := do(t, http.MethodGet, srv.URL+"/health", "Bearer "+testKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "OK", "message": "Service is healthy"}, body)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyz(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return fmt.Errorf("dial tcp: refused") })

	_, srv := newTestRouter(t, testConfig(), &fakeEngine{name: "fake"}, func(d *Dependencies) {
		d.Readiness = map[string]handlers.Pinger{"redis": healthy}
	})
	resp := do(t, http.MethodGet, srv.URL+"/readyz", "Bearer "+testKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, srv = newTestRouter(t, testConfig(), &fakeEngine{name: "fake"}, func(d *Dependencies) {
		d.Readiness = map[string]handlers.Pinger{"redis": down}
	})
	resp = do(t, http.MethodGet, srv.URL+"/readyz", "Bearer "+testKey, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), "refused")
}

func TestRecognize_ZhCN(t *testing.T) {
	engine := &fakeEngine{name: "fake", results: []stt.Result{{Alternatives: []stt.Alternative{
		{Transcript: "你好世界", Confidence: 0.97},
	}}}}
	_, srv := newTestRouter(t, testConfig(), engine)

	resp := recognize(t, srv, requestBody("zh-CN", "LINEAR16", pcm(32000)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var out speech.RecognizeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Results)
	alt := out.Results[0].Alternatives[0]
	assert.Equal(t, "你好世界", alt.Transcript)
	assert.GreaterOrEqual(t, alt.Confidence, 0.0)
	assert.LessOrEqual(t, alt.Confidence, 1.0)
}

func TestRecognize_FiveLanguages(t *testing.T) {
	_, srv := newTestRouter(t, testConfig(), &fakeEngine{name: "fake"})

	for _, lang := range fiveLanguages {
		t.Run(lang, func(t *testing.T) {
			resp := recognize(t, srv, requestBody(lang, "FLAC", pcm(1024)))
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var raw map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
			require.Contains(t, raw, "results")
			assert.NotEqual(t, "null", string(raw["results"]))
		})
	}
}

func TestRecognize_NoSpeechReturnsEmptyArray(t *testing.T) {
	_, srv := newTestRouter(t, testConfig(), &fakeEngine{name: "fake", results: []stt.Result{}})

	resp := recognize(t, srv, requestBody("en-US", "LINEAR16", pcm(64)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, string(raw))
}

func TestRecognize_Idempotent(t *testing.T) {
	engine := &fakeEngine{name: "fake"}
	_, srv := newTestRouter(t, testConfig(), engine)
	body := requestBody("ja-JP", "LINEAR16", pcm(4096))

	first := recognize(t, srv, body)
	second := recognize(t, srv, body)
	require.Equal(t, http.StatusOK, first.StatusCode)
	require.Equal(t, http.StatusOK, second.StatusCode)

	a, _ := io.ReadAll(first.Body)
	b, _ := io.ReadAll(second.Body)
	assert.JSONEq(t, string(a), string(b))
	assert.EqualValues(t, 2, engine.calls.Load())
}

func TestRecognize_InvalidArgument(t *testing.T) {
	engine := &fakeEngine{name: "fake"}
	_, srv := newTestRouter(t, testConfig(), engine)
	audio := base64.StdEncoding.EncodeToString(pcm(64))

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"config":`},
		{"array body", `[]`},
		{"missing config", `{"audio":{"content":"` + audio + `"}}`},
		{"missing audio", `{"config":{"encoding":"LINEAR16","languageCode":"en-US"}}`},
		{"empty content", `{"config":{"encoding":"LINEAR16","languageCode":"en-US"},"audio":{"content":""}}`},
		{"bad base64", `{"config":{"encoding":"LINEAR16","languageCode":"en-US"},"audio":{"content":"%%%not-base64"}}`},
		{"missing language", `{"config":{"encoding":"LINEAR16"},"audio":{"content":"` + audio + `"}}`},
		{"blank language", `{"config":{"encoding":"LINEAR16","languageCode":"  "},"audio":{"content":"` + audio + `"}}`},
		{"unknown encoding", `{"config":{"encoding":"AAC","languageCode":"en-US"},"audio":{"content":"` + audio + `"}}`},
		{"lowercase encoding", `{"config":{"encoding":"linear16","languageCode":"en-US"},"audio":{"content":"` + audio + `"}}`},
		{"negative sample rate", `{"config":{"encoding":"LINEAR16","sampleRateHertz":-1,"languageCode":"en-US"},"audio":{"content":"` + audio + `"}}`},
		{"zero alternatives", `{"config":{"encoding":"LINEAR16","maxAlternatives":0,"languageCode":"en-US"},"audio":{"content":"` + audio + `"}}`},
		{"string flag", `{"config":{"encoding":"LINEAR16","enableWordTimeOffsets":"yes","languageCode":"en-US"},"audio":{"content":"` + audio + `"}}`},
		{"unregistered language", requestBody("de-DE", "LINEAR16", pcm(64))},
		{"unregistered encoding", requestBody("en-US", "MP3", pcm(64))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := recognize(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			env := decodeEnvelope(t, resp)
			assert.Equal(t, 400, env.Code)
			assert.Equal(t, "INVALID_ARGUMENT", env.Status)
			assert.NotEmpty(t, env.Message)
		})
	}
	assert.Zero(t, engine.calls.Load())
}

func TestRecognize_PayloadTooLarge(t *testing.T) {
	engine := &fakeEngine{name: "fake"}
	_, srv := newTestRouter(t, testConfig(), engine)

	// 11 MiB of audio, well past the 10 MiB bound.
	content := strings.Repeat("A", base64.StdEncoding.EncodedLen(11<<20))
	body := `{"config":{"encoding":"LINEAR16","languageCode":"zh-CN"},"audio":{"content":"` + content + `"}}`

	rec := serveLocal(srv, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	env := recorderEnvelope(t, rec)
	assert.Equal(t, 413, env.Code)
	assert.Equal(t, "FAILED_PRECONDITION", env.Status)
	assert.Zero(t, engine.calls.Load())
}

func TestRecognize_SizeCheckedBeforeValidation(t *testing.T) {
	_, srv := newTestRouter(t, testConfig(), &fakeEngine{name: "fake"})

	// Oversized and also missing languageCode: size wins.
	content := strings.Repeat("A", base64.StdEncoding.EncodedLen(11<<20))
	rec := serveLocal(srv, `{"config":{"encoding":"AAC"},"audio":{"content":"`+content+`"}}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRecognize_ExactBoundary(t *testing.T) {
	engine := &fakeEngine{name: "fake"}
	_, srv := newTestRouter(t, testConfig(), engine)
	max := int(config.DefaultMaxAudioBytes)

	rec := serveLocal(srv, requestBody("en-US", "LINEAR16", make([]byte, max)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serveLocal(srv, requestBody("en-US", "LINEAR16", make([]byte, max+1)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FAILED_PRECONDITION", recorderEnvelope(t, rec).Status)
	assert.EqualValues(t, 1, engine.calls.Load())
}

func TestRecognize_EngineFaultIsInternal(t *testing.T) {
	engine := &fakeEngine{name: "fake", err: &stt.EngineError{
		Provider: "fake", StatusCode: 503, Message: "upstream secret detail", Cause: stt.ErrUnavailable,
	}}
	_, srv := newTestRouter(t, testConfig(), engine)

	resp := recognize(t, srv, requestBody("ko-KR", "LINEAR16", pcm(64)))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.Equal(t, "INTERNAL", env.Status)
	assert.NotContains(t, env.Message, "secret")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRecognize_EngineFaultLoggedOnce(t *testing.T) {
	logs := &syncBuffer{}
	engine := &fakeEngine{name: "fake", err: &stt.EngineError{Provider: "fake", StatusCode: 502, Cause: stt.ErrUnavailable}}
	_, srv := newTestRouter(t, testConfig(), engine, func(d *Dependencies) {
		d.Logger = slog.New(slog.NewJSONHandler(logs, nil))
	})

	resp := recognize(t, srv, requestBody("en-US", "LINEAR16", pcm(64)))
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, `"msg":"recognition failed"`))
	assert.NotContains(t, out, "recognize failed")
}

func TestUnknownRouteAndMethod(t *testing.T) {
	_, srv := newTestRouter(t, testConfig(), &fakeEngine{name: "fake"})

	resp := do(t, http.MethodGet, srv.URL+"/v2/transcribe", "Bearer "+testKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, resp).Status)

	resp = do(t, http.MethodGet, srv.URL+"/recognize", "Bearer "+testKey, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "UNIMPLEMENTED", decodeEnvelope(t, resp).Status)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RPS: 0.5, Burst: 1}
	_, srv := newTestRouter(t, cfg, &fakeEngine{name: "fake"})

	resp := do(t, http.MethodGet, srv.URL+"/health", "Bearer "+testKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/health", "Bearer "+testKey, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "RESOURCE_EXHAUSTED", decodeEnvelope(t, resp).Status)

	// Unauthenticated traffic is rejected before it can spend a key's budget.
	resp = do(t, http.MethodGet, srv.URL+"/health", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestRouter(t, testConfig(), &fakeEngine{name: "fake"})

	recognize(t, srv, requestBody("en-US", "LINEAR16", pcm(64)))
	recognize(t, srv, `{}`)

	resp := do(t, http.MethodGet, srv.URL+"/metrics", "Bearer "+testKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `speechgw_http_requests_total{code="200",method="POST",route="/recognize"}`)
	assert.Contains(t, text, "speechgw_recognitions_total")
}

func TestMetrics_UnauthenticatedMethodsShareOneSeries(t *testing.T) {
	m := metrics.New()
	_, srv := newTestRouter(t, testConfig(), &fakeEngine{name: "fake"}, func(d *Dependencies) {
		d.Metrics = m
	})

	for i := 0; i < 50; i++ {
		resp := do(t, fmt.Sprintf("M%04d", i), srv.URL+"/health", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequests))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "other", "401")))
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORSOrigins = []string{"https://app.example"}
	_, srv := newTestRouter(t, cfg, &fakeEngine{name: "fake"})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/recognize", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestUsageRecordedAfterSuccess(t *testing.T) {
	rec := &memRecorder{}
	rt, srv := newTestRouter(t, testConfig(), &fakeEngine{name: "fake"}, func(d *Dependencies) {
		d.Usage = rec
	})

	resp := recognize(t, srv, requestBody("yue-HK", "LINEAR16", pcm(2048)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = recognize(t, srv, `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	rt.recognize.Wait()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, testKeyID(t), ev.KeyID)
	assert.Equal(t, "fake", ev.Backend)
	assert.Equal(t, "yue-HK", ev.LanguageCode)
	assert.EqualValues(t, 2048, ev.AudioBytes)
	assert.NotEmpty(t, ev.RequestID)
}

func TestUsageEndpoint(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	counter := cache.NewUsageCounter(rdb)

	_, srv := newTestRouter(t, testConfig(), &fakeEngine{name: "fake"}, func(d *Dependencies) {
		d.Usage = usage.NewService(counter, nil)
		d.Counters = counter
	})

	resp := recognize(t, srv, requestBody("en-US", "LINEAR16", pcm(100)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		u, err := counter.Get(context.Background(), testKeyID(t), time.Now().UTC())
		return err == nil && u.Requests == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp = do(t, http.MethodGet, srv.URL+"/usage", "Bearer "+testKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Requests   int64 `json:"requests"`
		AudioBytes int64 `json:"audioBytes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 1, body.Requests)
	assert.EqualValues(t, 100, body.AudioBytes)

	resp = do(t, http.MethodGet, srv.URL+"/usage?date=yesterday", "Bearer "+testKey, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNewRouter_RequiresKeysAndRegistry(t *testing.T) {
	_, err := NewRouter(testConfig(), Dependencies{})
	assert.Error(t, err)

	_, err = NewRouter(testConfig(), Dependencies{Keys: auth.NewKeySet([]string{"k"})})
	assert.Error(t, err)
}
