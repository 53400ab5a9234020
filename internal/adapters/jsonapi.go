package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"etfcli/pkg/contracts/domain"
)

// maxResponseBytes caps how much of an upstream response is read. Quote
// payloads are tiny; anything bigger is a misbehaving source.
const maxResponseBytes = 1 << 20

// JSONAPI fetches quotes from a JSON-over-HTTP provider:
//
//	GET {base_url}/etfs/{TICKER}/quote?fields=bid,ask,...
//
// expecting a payload of the form
//
//	{"ticker":"VTI","observed_at":"2025-06-10T14:30:00Z","fields":{"bid":100.0}}
//
// Unknown field keys and non-numeric values are dropped; a field the source
// does not carry is simply absent.
type JSONAPI struct {
	source  domain.SourceID
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewJSONAPI creates an adapter for one provider endpoint.
func NewJSONAPI(source domain.SourceID, baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *JSONAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONAPI{
		source:  source,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("component", "adapter"), slog.String("source", string(source))),
		now:     time.Now,
	}
}

// Source implements Adapter.
func (a *JSONAPI) Source() domain.SourceID {
	return a.source
}

type quotePayload struct {
	Ticker     string         `json:"ticker"`
	ObservedAt time.Time      `json:"observed_at"`
	Fields     map[string]any `json:"fields"`
}

// Fetch implements Adapter.
func (a *JSONAPI) Fetch(ctx context.Context, ticker string, fields []domain.Field) (map[domain.Field]domain.FieldValue, error) {
	endpoint := fmt.Sprintf("%s/etfs/%s/quote?fields=%s",
		a.baseURL,
		url.PathEscape(strings.ToUpper(ticker)),
		url.QueryEscape(joinFields(fields)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewError(a.source, KindNetwork, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ETF-Pulse/1.0")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WarnContext(ctx, "source request failed",
			slog.String("ticker", ticker),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, Classify(a.source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, Classify(a.source, fmt.Errorf("read response: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, NewError(a.source, KindNotFound, fmt.Errorf("ticker %s unknown to source", ticker))
	case http.StatusTooManyRequests:
		return nil, NewError(a.source, KindRateLimited, fmt.Errorf("source returned 429"))
	default:
		return nil, NewError(a.source, KindNetwork,
			fmt.Errorf("source returned status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var payload quotePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, NewError(a.source, KindParse, fmt.Errorf("decode response: %w", err))
	}

	observedAt := payload.ObservedAt
	if observedAt.IsZero() {
		observedAt = a.now()
	}

	requested := make(map[domain.Field]struct{}, len(fields))
	for _, f := range fields {
		requested[f] = struct{}{}
	}

	out := make(map[domain.Field]domain.FieldValue)
	for key, raw := range payload.Fields {
		field, known := domain.ParseField(key)
		if !known {
			continue
		}
		if _, want := requested[field]; !want {
			continue
		}
		value, numeric := raw.(float64)
		if !numeric {
			a.logger.DebugContext(ctx, "dropping non-numeric field value",
				slog.String("ticker", ticker),
				slog.String("field", key))
			continue
		}
		out[field] = domain.FieldValue{
			Value:      value,
			Source:     a.source,
			ObservedAt: observedAt,
		}
	}

	a.logger.DebugContext(ctx, "source fetch complete",
		slog.String("ticker", ticker),
		slog.Int("fields_returned", len(out)),
		slog.Duration("duration", time.Since(start)))
	return out, nil
}

func joinFields(fields []domain.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
