package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legisync/legisync/pkg/config"
	"github.com/legisync/legisync/pkg/congress"
	"github.com/legisync/legisync/pkg/model"
	"github.com/legisync/legisync/pkg/stage"
	"github.com/legisync/legisync/pkg/store"
)

// fakeCongress is an in-process stand-in for the upstream API. Routes map
// URL paths to JSON payloads; statuses force an HTTP status for a path.
type fakeCongress struct {
	mu       stdsync.Mutex
	requests []string
	routes   map[string]any
	statuses map[string]int
}

func newFakeCongress() *fakeCongress {
	return &fakeCongress{
		routes:   make(map[string]any),
		statuses: make(map[string]int),
	}
}

func (f *fakeCongress) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL.Path)
		f.mu.Unlock()

		if code, ok := f.statuses[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		payload, ok := f.routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (f *fakeCongress) requestPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeCongress) countRequests(path string) int {
	n := 0
	for _, p := range f.requestPaths() {
		if p == path {
			n++
		}
	}
	return n
}

// addCompleteBill seeds every endpoint of one bill with plausible payloads.
func (f *fakeCongress) addCompleteBill(congressNum int, bt model.BillType, n int) {
	base := fmt.Sprintf("/bill/%d/%s/%d", congressNum, bt, n)
	f.routes[base] = map[string]any{
		"bill": map[string]any{
			"title":          fmt.Sprintf("H.R. %d - Lower Energy Costs Act", n),
			"introducedDate": "2025-01-03",
			"sponsors": []map[string]any{
				{"firstName": "Jane", "lastName": "Doe", "party": "R", "state": "TX"},
			},
		},
	}
	f.routes[base+"/actions"] = map[string]any{
		"actions": []map[string]any{
			{
				"actionCode": "H11100", "actionDate": "2025-01-04",
				"text": "Referred to the Committee on Energy and Commerce.",
				"type": "IntroReferral",
				"sourceSystem": map[string]any{"code": "2", "name": "House floor actions"},
			},
		},
	}
	f.routes[base+"/subjects"] = map[string]any{
		"subjects": map[string]any{
			"policyArea": map[string]any{"name": "Energy", "updateDate": "2025-01-05"},
		},
	}
	f.routes[base+"/summaries"] = map[string]any{
		"summaries": []map[string]any{
			{
				"versionCode": "00", "actionDate": "2025-01-03",
				"actionDesc": "Introduced in House",
				"text":       "<p>This bill lowers energy costs.</p>",
				"updateDate": "2025-01-06",
			},
		},
	}
	f.routes[base+"/text"] = map[string]any{
		"textVersions": []map[string]any{
			{
				"date": "2025-01-03", "type": "Introduced in House",
				"formats": []map[string]any{
					{"type": "Formatted Text", "url": "https://example.gov/ih.htm"},
					{"type": "PDF", "url": "https://example.gov/ih.pdf"},
				},
			},
			{
				"date": "2025-02-10", "type": "Engrossed in House",
				"formats": []map[string]any{
					{"type": "Formatted Text", "url": "https://example.gov/eh.htm"},
				},
			},
		},
	}
}

func (f *fakeCongress) addList(congressNum int, bt model.BillType, numbers ...string) {
	bills := make([]map[string]any, 0, len(numbers))
	for _, n := range numbers {
		bills = append(bills, map[string]any{"number": n, "updateDate": "2025-06-01"})
	}
	f.routes[fmt.Sprintf("/bill/%d/%s", congressNum, bt)] = map[string]any{
		"bills":      bills,
		"pagination": map[string]any{"count": len(bills)},
	}
}

func testTuning() config.Tuning {
	tuning := config.DefaultTuning()
	tuning.BatchSize = 2
	tuning.RepairBatchSize = 20
	tuning.ConsecutiveFailLimit = 3
	tuning.NextPageDelay = 5 * time.Second
	return tuning
}

func newTestEnv(t *testing.T, tuning config.Tuning) (*fakeCongress, *Service, *store.Store) {
	t.Helper()
	ctx := context.Background()

	fake := newFakeCongress()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	st, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	client, err := congress.NewClient("test-key",
		congress.WithBaseURL(srv.URL),
		congress.WithInterRequestDelay(time.Millisecond),
		congress.WithRetry(1, time.Millisecond),
	)
	require.NoError(t, err)

	return fake, NewService(client, st, tuning), st
}

// pendingJobs drains the queue without running anything, for assertions.
func pendingJobs(t *testing.T, st *store.Store) []store.Job {
	t.Helper()
	jobs, err := st.ClaimDueJobs(context.Background(), time.Now().UTC().Add(1000*time.Hour), 100)
	require.NoError(t, err)
	return jobs
}

func TestAssembleBillAllEndpoints(t *testing.T) {
	ctx := context.Background()
	fake, svc, st := newTestEnv(t, testTuning())
	fake.addCompleteBill(119, model.BillTypeHR, 1)

	bits, err := svc.AssembleBill(ctx, 119, model.BillTypeHR, 1)
	require.NoError(t, err)
	assert.Equal(t, model.EndpointsAll, bits)

	bill, err := st.GetBill(ctx, "1hr119")
	require.NoError(t, err)
	assert.Equal(t, "H.R. 1 - Lower Energy Costs Act", bill.Title)
	assert.Equal(t, "Lower Energy Costs Act", bill.TitleWithoutNumber)
	assert.Equal(t, "Doe", bill.SponsorLastName)
	assert.Equal(t, stage.InCommittee, bill.Stage)
	assert.Equal(t, model.EndpointsAll, bill.SyncedMask())
	assert.False(t, bill.LastSyncAttempt.IsZero())
}

func TestAssembleBillStoresLatestTextVersion(t *testing.T) {
	ctx := context.Background()
	fake, svc, st := newTestEnv(t, testTuning())
	fake.addCompleteBill(119, model.BillTypeHR, 1)

	_, err := svc.AssembleBill(ctx, 119, model.BillTypeHR, 1)
	require.NoError(t, err)

	// The engrossed version is last in the upstream list, so it is the one
	// persisted.
	texts, err := st.GetBillTexts(ctx, "1hr119")
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Equal(t, "Engrossed in House", texts[0].Type)
	assert.Equal(t, "https://example.gov/eh.htm", texts[0].TextURL)
	assert.Empty(t, texts[0].PDFURL)
}

func TestAssembleBillMissingSummaries(t *testing.T) {
	ctx := context.Background()
	fake, svc, st := newTestEnv(t, testTuning())
	fake.addCompleteBill(119, model.BillTypeHR, 2)
	delete(fake.routes, "/bill/119/hr/2/summaries")

	bits, err := svc.AssembleBill(ctx, 119, model.BillTypeHR, 2)
	require.NoError(t, err)
	assert.Equal(t, model.EndpointsAll&^model.EndpointSummaries, bits)

	bill, err := st.GetBill(ctx, "2hr119")
	require.NoError(t, err)
	assert.Equal(t, model.EndpointsAll&^model.EndpointSummaries, bill.SyncedMask())
	assert.False(t, bill.IsLegacy())
}

func TestAssembleBillDetailFailure(t *testing.T) {
	ctx := context.Background()
	fake, svc, st := newTestEnv(t, testTuning())
	fake.addCompleteBill(119, model.BillTypeHR, 3)
	fake.statuses["/bill/119/hr/3"] = http.StatusBadRequest

	_, err := svc.AssembleBill(ctx, 119, model.BillTypeHR, 3)
	require.Error(t, err)

	// No bill row, and no child endpoint was even attempted.
	_, err = st.GetBill(ctx, "3hr119")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, fake.countRequests("/bill/119/hr/3/actions"))
}

func TestAssembleBillIdempotentMask(t *testing.T) {
	ctx := context.Background()
	fake, svc, st := newTestEnv(t, testTuning())
	fake.addCompleteBill(119, model.BillTypeHR, 4)

	// First pass without summaries, second with them restored.
	delete(fake.routes, "/bill/119/hr/4/summaries")
	bits, err := svc.AssembleBill(ctx, 119, model.BillTypeHR, 4)
	require.NoError(t, err)
	assert.Equal(t, model.EndpointsAll&^model.EndpointSummaries, bits)

	fake.addCompleteBill(119, model.BillTypeHR, 4)
	_, err = svc.AssembleBill(ctx, 119, model.BillTypeHR, 4)
	require.NoError(t, err)

	bill, err := st.GetBill(ctx, "4hr119")
	require.NoError(t, err)
	assert.Equal(t, model.EndpointsAll, bill.SyncedMask())
}

func TestTitleWithoutNumber(t *testing.T) {
	cases := map[string]string{
		"H.R. 1234 - Lower Energy Costs Act":       "Lower Energy Costs Act",
		"S. 5 - Border Act":                        "Border Act",
		"S.J.Res. 7 - Disapproval Resolution":      "Disapproval Resolution",
		"H.Con.Res. 14 - Budget Resolution":        "Budget Resolution",
		"A bill without any designator":            "A bill without any designator",
		"H.R. 99 – En Dash Separated Act":          "En Dash Separated Act",
		"Providing for consideration of H.R. 1234": "Providing for consideration of H.R. 1234",
	}
	for title, want := range cases {
		assert.Equal(t, want, TitleWithoutNumber(title), "title %q", title)
	}
}
