package insights

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
)

// PageviewsClient reads per-article daily views from the Wikimedia REST API
// and implements concept.ViewCounter.
type PageviewsClient struct {
	caller
	baseURL string
	project string
	days    int
	now     func() time.Time
}

var _ concept.ViewCounter = (*PageviewsClient)(nil)

// NewPageviewsClient creates a Wikimedia pageviews client from cfg.
func NewPageviewsClient(cfg Config) *PageviewsClient {
	cfg = cfg.withDefaults()
	return &PageviewsClient{
		caller: caller{
			http:    &http.Client{Timeout: cfg.Timeout},
			limiter: newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		},
		baseURL: strings.TrimRight(cfg.PageviewsURL, "/"),
		project: cfg.PageviewsProject,
		days:    cfg.PageviewsDays,
		now:     time.Now,
	}
}

// ViewCount returns the mean daily views of the article for label over the
// configured window, rounded down. Days without data are not counted.
func (p *PageviewsClient) ViewCount(ctx context.Context, label string) (uint64, error) {
	end := p.now().UTC().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(p.days - 1))
	article := url.PathEscape(strings.ReplaceAll(label, " ", "_"))
	endpoint := p.baseURL + "/metrics/pageviews/per-article/" + p.project +
		"/all-access/all-agents/" + article + "/daily/" +
		start.Format("20060102") + "00/" + end.Format("20060102") + "00"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	body, err := p.do(ctx, "pageviews", req)
	if err != nil {
		return 0, err
	}

	views := gjson.GetBytes(body, "items.#.views").Array()
	if len(views) == 0 {
		return 0, nil
	}
	var total uint64
	for _, v := range views {
		total += v.Uint()
	}
	return total / uint64(len(views)), nil
}
