package untappd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"strinks/internal/catalog"
	"strinks/internal/config"
	"strinks/internal/httpsession"
	"strinks/internal/logging"
	"strinks/internal/services"
)

const (
	webBackendName = "untappd_web"
	maxWebBody     = 8 << 20
)

// WebOptions configures a WebClient.
type WebOptions struct {
	BaseURL string
	// RequestsPerHour caps page fetches; zero disables the cap.
	RequestsPerHour int
	Logger          *slog.Logger
}

// WebOptionsFromConfig maps the [untappd] section onto web options.
func WebOptionsFromConfig(cfg *config.Config) WebOptions {
	return WebOptions{
		BaseURL:         cfg.Untappd.WebBaseURL,
		RequestsPerHour: cfg.Untappd.WebRequestsPerHour,
	}
}

// WebClient scrapes the public Untappd search pages. It needs no credentials.
type WebClient struct {
	session *httpsession.Session
	baseURL string
	budget  *rate.Limiter
	logger  *slog.Logger
}

var (
	_ catalog.Searcher     = (*WebClient)(nil)
	_ catalog.InfoProvider = (*WebClient)(nil)
)

// NewWebClient creates a web client that sends every request through session.
func NewWebClient(session *httpsession.Session, opts WebOptions) (*WebClient, error) {
	if session == nil {
		return nil, services.Wrap(services.ErrConfiguration, "untappd", "web", "http session required", nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "untappd", "web", "base url required", nil)
	}
	budget := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerHour > 0 {
		// a fresh process may spend the whole hourly budget before refilling
		budget = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerHour)/3600), opts.RequestsPerHour)
	}
	return &WebClient{
		session: session,
		baseURL: baseURL,
		budget:  budget,
		logger:  logging.NewComponentLogger(opts.Logger, "untappd_web"),
	}, nil
}

// Name identifies the backend in results and logs.
func (c *WebClient) Name() string { return webBackendName }

// Search fetches /search?q=..&type=beer and parses each beer-item block.
// Items that cannot be parsed are skipped.
func (c *WebClient) Search(ctx context.Context, query string, limit int) ([]catalog.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "beer")

	doc, err := c.fetch(ctx, "search", "/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	items := doc.Find("div.beer-item")
	candidates := make([]catalog.Candidate, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		if limit > 0 && len(candidates) >= limit {
			return
		}
		cand, parseErr := parseBeerItem(item)
		if parseErr != nil {
			c.logger.Debug("skipping unparseable beer item",
				logging.String("query", query),
				logging.Error(parseErr))
			return
		}
		candidates = append(candidates, cand)
	})
	if items.Length() > 0 && len(candidates) == 0 {
		return nil, services.Wrap(services.ErrParse, "untappd", "search", "no beer item could be parsed", nil)
	}
	for i := range candidates {
		candidates[i].Score = catalog.PositionalScore(i, len(candidates))
	}
	c.logger.Debug("web search completed",
		logging.String("query", query),
		logging.Int("result_count", len(candidates)))
	return candidates, nil
}

// BeerInfo fetches the beer page /beer/{id}.
func (c *WebClient) BeerInfo(ctx context.Context, id string) (catalog.Candidate, error) {
	id = strings.TrimSpace(id)
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return catalog.Candidate{}, services.Wrap(services.ErrValidation, "untappd", "beer info", fmt.Sprintf("invalid beer id %q", id), nil)
	}
	doc, err := c.fetch(ctx, "beer info", "/beer/"+id)
	if err != nil {
		return catalog.Candidate{}, err
	}
	content := doc.Find("div.content").First()
	if content.Length() == 0 {
		return catalog.Candidate{}, services.Wrap(services.ErrNotFound, "untappd", "beer info", "beer "+id+" not found", nil)
	}
	cand, err := parseBeerFields(content, id)
	if err != nil {
		return catalog.Candidate{}, services.Wrap(services.ErrParse, "untappd", "beer info", "", err)
	}
	cand.Score = 1
	return cand, nil
}

func (c *WebClient) fetch(ctx context.Context, operation, pathAndQuery string) (*goquery.Document, error) {
	if err := c.budget.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("untappd %s: %w", operation, ctxErr)
		}
		return nil, services.Wrap(services.ErrQuota, "untappd", operation, "hourly web request budget exhausted", err)
	}

	header := http.Header{}
	header.Set("Referer", c.baseURL+"/home")
	resp, err := c.session.Get(ctx, c.baseURL+pathAndQuery, header)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("untappd %s: %w", operation, ctxErr)
		}
		return nil, services.Wrap(services.ErrTransient, "untappd", operation, "request failed", err)
	}
	body, readErr := httpsession.ReadBody(resp, maxWebBody)
	if statusErr := httpsession.CheckStatus(resp); statusErr != nil {
		if errors.Is(statusErr, services.ErrNotFound) {
			return nil, services.Wrap(services.ErrNotFound, "untappd", operation, "", statusErr)
		}
		// the web backend is the last resort; every other failure is transient
		return nil, services.Wrap(services.ErrTransient, "untappd", operation, "", statusErr)
	}
	if resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrTransient, "untappd", operation, "unexpected redirect "+resp.Status, nil)
	}
	if readErr != nil {
		return nil, services.Wrap(services.ErrTransient, "untappd", operation, "read body", readErr)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrParse, "untappd", operation, "parse html", err)
	}
	return doc, nil
}

func parseBeerItem(item *goquery.Selection) (catalog.Candidate, error) {
	href, ok := item.Find("a.label").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return catalog.Candidate{}, errors.New("beer label has no href")
	}
	id := path.Base(strings.TrimRight(strings.TrimSpace(href), "/"))
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return catalog.Candidate{}, fmt.Errorf("beer href %q has no numeric id", href)
	}
	return parseBeerFields(item, id)
}

func parseBeerFields(item *goquery.Selection, id string) (catalog.Candidate, error) {
	name := strings.TrimSpace(item.Find("p.name").First().Text())
	if name == "" {
		return catalog.Candidate{}, errors.New("missing beer name")
	}
	brewery := strings.TrimSpace(item.Find("p.brewery").First().Text())
	if brewery == "" {
		return catalog.Candidate{}, errors.New("missing brewery")
	}
	cand := catalog.Candidate{
		ID:      id,
		Name:    name,
		Brewery: brewery,
		Style:   strings.TrimSpace(item.Find("p.style").First().Text()),
		ABV:     leadingNumber(item.Find("p.abv").First().Text(), "%"),
		IBU:     leadingNumber(item.Find("p.ibu").First().Text(), " "),
		Backend: webBackendName,
	}
	if src, ok := item.Find("a.label img").First().Attr("src"); ok {
		cand.ImageURL = strings.TrimSpace(src)
	}
	if raw, ok := item.Find("div.caps").First().Attr("data-rating"); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && v > 0 {
			cand.Rating = &v
		}
	}
	return cand, nil
}

// leadingNumber parses "5.5% ABV" or "45 IBU"; "N/A" and junk yield 0.
func leadingNumber(text, sep string) float64 {
	text = strings.TrimSpace(text)
	head, _, _ := strings.Cut(text, sep)
	v, err := strconv.ParseFloat(strings.TrimSpace(head), 64)
	if err != nil {
		return 0
	}
	return v
}
