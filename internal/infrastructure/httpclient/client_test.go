package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/trialscope/internal/testutil"
	"github.com/turtacn/trialscope/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 2*time.Millisecond)}, opts...)
	c, err := New("test", server.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "http://example.com")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = New("chembl", "")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = New("chembl", "ftp://example.com")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	c, err := New("chembl", "https://www.ebi.ac.uk/chembl/api/data")
	require.NoError(t, err)
	assert.Equal(t, "chembl", c.Source())
	assert.Equal(t, defaultRetryMax, c.retryMax)
}

func TestGetJSON_Success(t *testing.T) {
	var gotPath, gotQuery, gotRequestID, gotUA string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("pref_name__iexact")
		gotRequestID = r.Header.Get(headerRequestID)
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}, WithUserAgent("trialscope-test"))

	var out struct {
		Value string `json:"value"`
	}
	err := c.GetJSON(context.Background(), "search", "/molecule.json", map[string][]string{"pref_name__iexact": {"aspirin"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, "/molecule.json", gotPath)
	assert.Equal(t, "aspirin", gotQuery)
	assert.Len(t, gotRequestID, 36)
	assert.Equal(t, "trialscope-test", gotUA)
}

func TestGet_NotFound(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	})

	_, err := c.Get(context.Background(), "molecule", "molecule/CHEMBL0.json", nil)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestGet_RateLimitedIsNotRetried(t *testing.T) {
	var calls int32
	logger := testutil.NewMockLogger()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set(headerRetryAfter, "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}, WithLogger(logger))

	_, err := c.Get(context.Background(), "esearch", "esearch.fcgi", nil)
	require.Error(t, err)
	assert.True(t, errors.IsRateLimited(err))
	assert.Equal(t, 120*time.Second, errors.RetryAfterOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	src, ok := RateLimitedSource(errors.Wrap(err, errors.CodeUnknown, "pipeline"))
	assert.True(t, ok)
	assert.Equal(t, "test", src)

	msgs := logger.Find("warn", "rate limited by upstream")
	require.Len(t, msgs, 1)
	source, _ := msgs[0].Field("source")
	op, _ := msgs[0].Field("op")
	assert.Equal(t, "test", source)
	assert.Equal(t, "esearch", op)
}

func TestRateLimitedSource_Other(t *testing.T) {
	_, ok := RateLimitedSource(errors.RateLimited(time.Second, "cooldown active"))
	assert.False(t, ok)
	_, ok = RateLimitedSource(errors.Unavailable("down"))
	assert.False(t, ok)
	_, ok = RateLimitedSource(nil)
	assert.False(t, ok)
}

func TestGet_RateLimitedDefaultRetryAfter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, WithDefaultRetryAfter(300*time.Second))

	_, err := c.Get(context.Background(), "esearch", "esearch.fcgi", nil)
	assert.Equal(t, 300*time.Second, errors.RetryAfterOf(err))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.Get(context.Background(), "mechanism", "mechanism.json", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_ServerErrorsExhausted(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithRetryMax(2))

	_, err := c.Get(context.Background(), "mechanism", "mechanism.json", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDataSourceUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Get(context.Background(), "target", "target.json", nil)
	assert.True(t, errors.IsCode(err, errors.CodeDataSourceUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetJSON_Malformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	var out map[string]interface{}
	err := c.GetJSON(context.Background(), "target", "target/CHEMBL1.json", nil, &out)
	assert.True(t, errors.IsCode(err, errors.CodeDataSourceParseError))
}

func TestPostJSON_BasicAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "u" || pass != "p" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"response":"aspirin"}`))
	}, WithBasicAuth("u", "p"))

	var out struct {
		Response string `json:"response"`
	}
	err := c.PostJSON(context.Background(), "generate", "/api/generate", map[string]string{"model": "m"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "aspirin", out.Response)
}

func TestGet_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, WithRetryWait(time.Second, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "molecule", "molecule.json", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDataSourceUnavailable))
}

func TestCalculateBackoff(t *testing.T) {
	c := &Client{retryWaitMin: 100 * time.Millisecond, retryWaitMax: 300 * time.Millisecond}

	b1 := c.calculateBackoff(1)
	assert.GreaterOrEqual(t, b1, 100*time.Millisecond)
	assert.Less(t, b1, 125*time.Millisecond)

	b2 := c.calculateBackoff(2)
	assert.GreaterOrEqual(t, b2, 200*time.Millisecond)
	assert.Less(t, b2, 250*time.Millisecond)

	b5 := c.calculateBackoff(5)
	assert.GreaterOrEqual(t, b5, 300*time.Millisecond)
	assert.Less(t, b5, 375*time.Millisecond)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	def := 5 * time.Minute

	cases := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"empty", "", def},
		{"seconds", "30", 30 * time.Second},
		{"zero seconds", "0", 0},
		{"negative", "-5", def},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), def},
		{"garbage", "soon", def},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseRetryAfter(tc.header, now, def))
		})
	}
}

func TestWithRateLimit_Paces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), "molecule", "molecule.json", nil)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
