package congress

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/legisync/legisync/pkg/model"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithInterRequestDelay(time.Millisecond),
		WithRetry(3, time.Millisecond),
	)
	require.NoError(t, err)
	return c, srv
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestFormatFromDateTime(t *testing.T) {
	ts := time.Date(2025, 1, 17, 3, 14, 0, 123456789, time.UTC)
	assert.Equal(t, "2025-01-17T03:14:00Z", FormatFromDateTime(ts))

	// Non-UTC input is converted.
	loc := time.FixedZone("EST", -5*3600)
	ts = time.Date(2025, 6, 1, 20, 0, 0, 0, loc)
	assert.Equal(t, "2025-06-02T01:00:00Z", FormatFromDateTime(ts))
}

func TestListBillsQueryShape(t *testing.T) {
	var gotQuery map[string][]string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"bills":[{"number":"42","updateDate":"2025-01-01"}],"pagination":{"count":1}}`))
	}))

	since := time.Date(2025, 1, 17, 3, 14, 0, 0, time.UTC)
	list, err := c.ListBills(context.Background(), 119, model.BillTypeHR, 50, 50, &since)
	require.NoError(t, err)

	require.Len(t, list.Bills, 1)
	assert.Equal(t, "42", list.Bills[0].Number)
	assert.Equal(t, []string{"test-key"}, gotQuery["api_key"])
	assert.Equal(t, []string{"json"}, gotQuery["format"])
	assert.Equal(t, []string{"50"}, gotQuery["offset"])
	assert.Equal(t, []string{"2025-01-17T03:14:00Z"}, gotQuery["fromDateTime"])
	assert.Equal(t, []string{"updateDate desc"}, gotQuery["sort"])
}

func TestGetBillDetail(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bill/119/hr/1234", r.URL.Path)
		_, _ = w.Write([]byte(`{"bill":{"title":"An Act","introducedDate":"2025-01-03",` +
			`"sponsors":[{"firstName":"Jane","lastName":"Doe","party":"D","state":"CA"}]}}`))
	}))

	detail, err := c.GetBillDetail(context.Background(), 119, model.BillTypeHR, 1234)
	require.NoError(t, err)
	assert.Equal(t, "An Act", detail.Title)
	require.Len(t, detail.Sponsors, 1)
	assert.Equal(t, "Doe", detail.Sponsors[0].LastName)
}

func TestRateLimitRetryEventualSuccess(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"bill":{"title":"T"}}`))
	}))

	var slept []time.Duration
	c.backoff = 10 * time.Second
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	detail, err := c.GetBillDetail(context.Background(), 119, model.BillTypeHR, 1)
	require.NoError(t, err)
	assert.Equal(t, "T", detail.Title)
	assert.Equal(t, int32(3), calls.Load())
	// Exponential backoff: 10s then 20s.
	require.Len(t, slept, 2)
	assert.Equal(t, 10*time.Second, slept[0])
	assert.Equal(t, 20*time.Second, slept[1])
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.GetBillDetail(context.Background(), 119, model.BillTypeHR, 1)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	// Initial attempt plus three retries.
	assert.Equal(t, int32(4), calls.Load())
}

func TestNotFoundIsImmediate(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetBillSummaries(context.Background(), 119, model.BillTypeS, 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := c.GetBillActions(context.Background(), 119, model.BillTypeHR, 1)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, int32(1), calls.Load())
}

func TestServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"actions":[]}`))
	}))

	_, err := c.GetBillActions(context.Background(), 119, model.BillTypeHR, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMalformedResponse(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bill":`))
	}))

	_, err := c.GetBillDetail(context.Background(), 119, model.BillTypeHR, 1)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGetBillSubjectsAbsentPolicyArea(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"subjects":{"legislativeSubjects":[]}}`))
	}))

	pa, err := c.GetBillSubjects(context.Background(), 119, model.BillTypeHR, 1)
	require.NoError(t, err)
	assert.Nil(t, pa)
}

func TestGetBillTextVersions(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"textVersions":[` +
			`{"date":"2025-01-03","type":"Introduced","formats":[{"type":"PDF","url":"https://x/p.pdf"},{"type":"Formatted Text","url":"https://x/t.htm"}]},` +
			`{"date":"2025-02-10","type":"Engrossed","formats":[{"type":"Formatted Text","url":"https://x/e.htm"}]}]}`))
	}))

	versions, err := c.GetBillTextVersions(context.Background(), 119, model.BillTypeHR, 1)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	latest := versions[len(versions)-1]
	assert.Equal(t, "Engrossed", latest.Type)
	assert.Equal(t, "https://x/e.htm", latest.URLFor(FormatText))
	assert.Equal(t, "", latest.URLFor(FormatPDF))
}

func TestFetchTextDocument(t *testing.T) {
	body := []byte("<html><body>AN ACT</body></html>")
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))

	got, err := c.FetchTextDocument(context.Background(), srv.URL+"/doc.htm")
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetchTextDocumentSizeCap(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxTextDocument+1))
	}))

	// Oversized renditions must error, never come back silently truncated.
	_, err := c.FetchTextDocument(context.Background(), srv.URL+"/huge.htm")
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
}

func TestInterRequestSpacing(t *testing.T) {
	var stamps []time.Time
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		_, _ = w.Write([]byte(`{"actions":[]}`))
	}))
	c.limiter.SetLimit(rate.Every(100 * time.Millisecond))
	c.limiter.SetBurst(1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.GetBillActions(context.Background(), 119, model.BillTypeHR, i)
		require.NoError(t, err)
	}
	// Three spaced calls need at least two full intervals.
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}
