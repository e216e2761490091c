package insights

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/logging"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/metrics"
)

const tokenHeader = "X-Watson-Authorization-Token"

// Client talks to a concept insights service over HTTP. It implements
// concept.Annotator and concept.Relater. Safe for concurrent use.
type Client struct {
	caller
	baseURL string
	graph   string
}

// caller performs throttled, instrumented HTTP calls.
type caller struct {
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

var (
	_ concept.Annotator = (*Client)(nil)
	_ concept.Relater   = (*Client)(nil)
)

// NewClient builds a client from cfg. The token is sent as-is.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		caller: caller{
			token:   cfg.Token,
			http:    &http.Client{Timeout: cfg.Timeout},
			limiter: newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		graph:   strings.Trim(cfg.Graph, "/"),
	}
}

// ConceptID returns the graph path of a concept label, e.g.
// "/graphs/wikipedia/en-20120601/concepts/Apple_Inc.".
func ConceptID(graph, label string) string {
	return "/graphs/" + strings.Trim(graph, "/") + "/concepts/" + strings.ReplaceAll(label, " ", "_")
}

// Annotate posts text to annotate_text and returns the identified concepts
// in service order.
func (c *Client) Annotate(ctx context.Context, text string) ([]concept.Scored, error) {
	endpoint := c.baseURL + "/v2/graphs/" + c.graph + "/annotate_text"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")
	body, err := c.do(ctx, "annotate_text", req)
	if err != nil {
		return nil, err
	}
	out, err := parseScored(body, "annotations")
	if err != nil {
		return nil, &CallError{Op: "annotate_text", Status: http.StatusOK, Err: err}
	}
	return out, nil
}

// RelatedConcepts returns up to limit concepts related to label at the given
// level. The label must be a precise concept label.
func (c *Client) RelatedConcepts(ctx context.Context, label string, level, limit int) ([]concept.Scored, error) {
	q := url.Values{}
	q.Set("concepts", `["`+ConceptID(c.graph, label)+`"]`)
	q.Set("level", strconv.Itoa(level))
	q.Set("limit", strconv.Itoa(limit))
	endpoint := c.baseURL + "/v2/graphs/" + c.graph + "/related_concepts?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "related_concepts", req)
	if err != nil {
		return nil, err
	}
	out, err := parseScored(body, "concepts")
	if err != nil {
		return nil, &CallError{Op: "related_concepts", Status: http.StatusOK, Err: err}
	}
	return out, nil
}

func (c *caller) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	done := metrics.TimeCall(op)
	success := false
	defer func() { done(success) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &CallError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Op: op, Status: resp.StatusCode, Err: err}
	}
	logging.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("concept service call")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CallError{Op: op, Status: resp.StatusCode, Body: snippet(body)}
	}
	if !gjson.ValidBytes(body) {
		return nil, &CallError{Op: op, Status: resp.StatusCode, Body: snippet(body), Err: errMalformedResponse}
	}
	success = true
	return body, nil
}

// parseScored reads [{"concept": {"label": ...}, "score": ...}] under key.
func parseScored(body []byte, key string) ([]concept.Scored, error) {
	list := gjson.GetBytes(body, key)
	if !list.Exists() {
		return []concept.Scored{}, nil
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: %q is not a list", errMalformedResponse, key)
	}
	out := make([]concept.Scored, 0, len(list.Array()))
	var perr error
	list.ForEach(func(_, v gjson.Result) bool {
		label := v.Get("concept.label")
		if label.Type != gjson.String {
			perr = fmt.Errorf("%w: %s entry without concept label", errMalformedResponse, key)
			return false
		}
		out = append(out, concept.Scored{Concept: label.String(), Score: v.Get("score").Float()})
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func snippet(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
