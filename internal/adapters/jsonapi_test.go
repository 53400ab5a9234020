package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfcli/internal/shared/testutil"
	"etfcli/pkg/contracts/domain"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *JSONAPI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, _ := testutil.NewTestLogger(t)
	return NewJSONAPI("marketfeed", server.URL, "", 5*time.Second, logger)
}

func TestJSONAPI_Fetch(t *testing.T) {
	observedAt := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ticker": "VTI",
			"observed_at": "2025-06-10T14:30:00Z",
			"fields": {"bid": 100.0, "ask": 100.02, "last_price": 100.01}
		}`))
	})

	got, err := adapter.Fetch(context.Background(), "VTI",
		[]domain.Field{domain.FieldBid, domain.FieldAsk, domain.FieldLastPrice})
	require.NoError(t, err)
	require.Len(t, got, 3)

	bid := got[domain.FieldBid]
	assert.Equal(t, 100.0, bid.Value)
	assert.Equal(t, domain.SourceID("marketfeed"), bid.Source)
	assert.True(t, observedAt.Equal(bid.ObservedAt))
	assert.False(t, bid.IsStale)
}

func TestJSONAPI_RequestShape(t *testing.T) {
	var gotPath, gotFields, gotAuth, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFields = r.URL.Query().Get("fields")
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"ticker":"VTI","fields":{}}`))
	}))
	defer server.Close()

	logger, _ := testutil.NewTestLogger(t)
	adapter := NewJSONAPI("marketfeed", server.URL+"/", "secret-key", 5*time.Second, logger)

	_, err := adapter.Fetch(context.Background(), "vti", []domain.Field{domain.FieldBid, domain.FieldAsk})
	require.NoError(t, err)

	assert.Equal(t, "/etfs/VTI/quote", gotPath, "ticker is upper-cased in the path")
	assert.Equal(t, "bid,ask", gotFields)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
}

func TestJSONAPI_DropsUnknownAndUnrequestedFields(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"ticker": "VTI",
			"fields": {
				"bid": 100.0,
				"nav_premium": 0.5,
				"assets": 5000000000,
				"HOLDINGS_COUNT": 3901
			}
		}`))
	})

	got, err := adapter.Fetch(context.Background(), "VTI", []domain.Field{domain.FieldBid})
	require.NoError(t, err)

	require.Len(t, got, 1, "unknown keys and unrequested known fields are dropped")
	assert.Contains(t, got, domain.FieldBid)
}

func TestJSONAPI_DropsNonNumericValues(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ticker":"VTI","fields":{"bid":"n/a","ask":100.02}}`))
	})

	got, err := adapter.Fetch(context.Background(), "VTI", []domain.Field{domain.FieldBid, domain.FieldAsk})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.NotContains(t, got, domain.FieldBid)
	assert.Equal(t, 100.02, got[domain.FieldAsk].Value)
}

func TestJSONAPI_MissingObservedAtUsesClock(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ticker":"VTI","fields":{"bid":100.0}}`))
	})
	fixed := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return fixed }

	got, err := adapter.Fetch(context.Background(), "VTI", []domain.Field{domain.FieldBid})
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got[domain.FieldBid].ObservedAt))
}

func TestJSONAPI_EmptyFieldsIsNotAnError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ticker":"VTI","fields":{}}`))
	})

	got, err := adapter.Fetch(context.Background(), "VTI", []domain.Field{domain.FieldBid})
	require.NoError(t, err)
	assert.Empty(t, got, "a source with nothing usable answers with an empty map")
}

func TestJSONAPI_StatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{name: "404 is not found", status: http.StatusNotFound, body: `{"error":"unknown ticker"}`, wantKind: KindNotFound},
		{name: "429 is rate limited", status: http.StatusTooManyRequests, body: `slow down`, wantKind: KindRateLimited},
		{name: "500 is network", status: http.StatusInternalServerError, body: `boom`, wantKind: KindNetwork},
		{name: "503 is network", status: http.StatusServiceUnavailable, body: ``, wantKind: KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := adapter.Fetch(context.Background(), "VTI", []domain.Field{domain.FieldBid})
			require.Error(t, err)

			var adapterErr *Error
			require.ErrorAs(t, err, &adapterErr)
			assert.Equal(t, tt.wantKind, adapterErr.Kind)
			assert.Equal(t, domain.SourceID("marketfeed"), adapterErr.Source)
		})
	}
}

func TestJSONAPI_MalformedBodyIsParseFailure(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ticker": "VTI", "fields": {`))
	})

	_, err := adapter.Fetch(context.Background(), "VTI", []domain.Field{domain.FieldBid})

	var adapterErr *Error
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, KindParse, adapterErr.Kind)
}

func TestJSONAPI_TimeoutClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"ticker":"VTI","fields":{}}`))
	}))
	defer server.Close()

	logger, _ := testutil.NewTestLogger(t)
	adapter := NewJSONAPI("marketfeed", server.URL, "", 50*time.Millisecond, logger)

	_, err := adapter.Fetch(context.Background(), "VTI", []domain.Field{domain.FieldBid})

	var adapterErr *Error
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, KindTimeout, adapterErr.Kind)
}

func TestJSONAPI_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"ticker":"VTI","fields":{}}`))
	}))
	defer server.Close()

	logger, _ := testutil.NewTestLogger(t)
	adapter := NewJSONAPI("marketfeed", server.URL, "", 5*time.Second, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := adapter.Fetch(ctx, "VTI", []domain.Field{domain.FieldBid})

	var adapterErr *Error
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, KindTimeout, adapterErr.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
