package untappd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"strinks/internal/catalog"
	"strinks/internal/clock"
	"strinks/internal/config"
	"strinks/internal/httpsession"
	"strinks/internal/logging"
	"strinks/internal/services"
)

const (
	apiBackendName     = "untappd_api"
	maxAPIBody         = 4 << 20
	defaultSearchLimit = 10
)

// APIOptions configures an APIClient.
type APIOptions struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// AccessToken takes precedence over the client credentials.
	AccessToken string
	SearchLimit int
	// QuotaCooldown is how long calls fail fast after the quota is hit.
	QuotaCooldown time.Duration
	Clock         clock.Clock
	Logger        *slog.Logger
}

// APIOptionsFromConfig maps the [untappd] section onto API options.
func APIOptionsFromConfig(cfg *config.Config) APIOptions {
	return APIOptions{
		BaseURL:       cfg.Untappd.APIBaseURL,
		ClientID:      cfg.Untappd.ClientID,
		ClientSecret:  cfg.Untappd.ClientSecret,
		AccessToken:   cfg.Untappd.AccessToken,
		SearchLimit:   cfg.Untappd.SearchLimit,
		QuotaCooldown: time.Duration(cfg.Untappd.QuotaCooldownSeconds) * time.Second,
	}
}

// APIClient searches the Untappd v4 API.
type APIClient struct {
	session  *httpsession.Session
	baseURL  string
	auth     url.Values
	limit    int
	cooldown time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	// unix nanoseconds; zero when no cooldown is active
	quotaUntil atomic.Int64
}

var (
	_ catalog.Searcher     = (*APIClient)(nil)
	_ catalog.InfoProvider = (*APIClient)(nil)
)

// NewAPIClient creates an API client that sends every request through session.
func NewAPIClient(session *httpsession.Session, opts APIOptions) (*APIClient, error) {
	if session == nil {
		return nil, services.Wrap(services.ErrConfiguration, "untappd", "api", "http session required", nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "untappd", "api", "base url required", nil)
	}
	auth := url.Values{}
	switch {
	case strings.TrimSpace(opts.AccessToken) != "":
		auth.Set("access_token", strings.TrimSpace(opts.AccessToken))
	case strings.TrimSpace(opts.ClientID) != "" && strings.TrimSpace(opts.ClientSecret) != "":
		auth.Set("client_id", strings.TrimSpace(opts.ClientID))
		auth.Set("client_secret", strings.TrimSpace(opts.ClientSecret))
	default:
		return nil, services.Wrap(services.ErrConfiguration, "untappd", "api", "client credentials or access token required", nil)
	}
	limit := opts.SearchLimit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	cooldown := opts.QuotaCooldown
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	return &APIClient{
		session:  session,
		baseURL:  baseURL,
		auth:     auth,
		limit:    limit,
		cooldown: cooldown,
		clock:    clock.OrReal(opts.Clock),
		logger:   logging.NewComponentLogger(opts.Logger, "untappd_api"),
	}, nil
}

// Name identifies the backend in results and logs.
func (c *APIClient) Name() string { return apiBackendName }

// Search queries /search/beer and returns candidates in API order.
func (c *APIClient) Search(ctx context.Context, query string, limit int) ([]catalog.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = c.limit
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	payload, err := c.get(ctx, "search", "/search/beer", params)
	if err != nil {
		return nil, err
	}

	items := payload.Get("response.beers.items").Array()
	candidates := make([]catalog.Candidate, 0, len(items))
	for _, item := range items {
		cand, ok := candidateFromJSON(item.Get("beer"), item.Get("brewery"))
		if !ok {
			c.logger.Debug("skipping malformed search item", logging.String("query", query))
			continue
		}
		candidates = append(candidates, cand)
	}
	for i := range candidates {
		candidates[i].Score = catalog.PositionalScore(i, len(candidates))
	}
	c.logger.Debug("api search completed",
		logging.String("query", query),
		logging.Int("result_count", len(candidates)))
	return candidates, nil
}

// BeerInfo fetches /beer/info/{id}.
func (c *APIClient) BeerInfo(ctx context.Context, id string) (catalog.Candidate, error) {
	id = strings.TrimSpace(id)
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return catalog.Candidate{}, services.Wrap(services.ErrValidation, "untappd", "beer info", fmt.Sprintf("invalid beer id %q", id), nil)
	}
	params := url.Values{}
	params.Set("compact", "enhanced")

	payload, err := c.get(ctx, "beer info", "/beer/info/"+id, params)
	if err != nil {
		return catalog.Candidate{}, err
	}
	beer := payload.Get("response.beer")
	cand, ok := candidateFromJSON(beer, beer.Get("brewery"))
	if !ok {
		return catalog.Candidate{}, services.Wrap(services.ErrParse, "untappd", "beer info", "beer payload missing fields", nil)
	}
	cand.Score = 1
	return cand, nil
}

// CoolingDown reports whether the quota cooldown is active.
func (c *APIClient) CoolingDown() bool {
	until := c.quotaUntil.Load()
	return until != 0 && c.clock.Now().UnixNano() < until
}

func (c *APIClient) get(ctx context.Context, operation, path string, params url.Values) (gjson.Result, error) {
	if c.CoolingDown() {
		until := time.Unix(0, c.quotaUntil.Load())
		return gjson.Result{}, services.Wrap(services.ErrQuota, "untappd", operation,
			"cooling down until "+until.UTC().Format(time.RFC3339), nil)
	}

	for key, values := range c.auth {
		params[key] = values
	}
	endpoint := c.baseURL + path + "?" + params.Encode()

	resp, err := c.session.Get(ctx, endpoint, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return gjson.Result{}, fmt.Errorf("untappd %s: %w", operation, ctxErr)
		}
		return gjson.Result{}, services.Wrap(services.ErrTransient, "untappd", operation, "request failed", err)
	}
	body, readErr := httpsession.ReadBody(resp, maxAPIBody)

	if resp.Header.Get("X-Ratelimit-Remaining") == "0" {
		c.startCooldown("rate limit remaining is zero")
	}
	if statusErr := httpsession.CheckStatus(resp); statusErr != nil {
		if httpsession.IsStatus(statusErr, http.StatusTooManyRequests) {
			c.startCooldown("status 429")
			return gjson.Result{}, services.Wrap(services.ErrQuota, "untappd", operation, "rate limited", statusErr)
		}
		return gjson.Result{}, services.Wrap(markerOf(statusErr), "untappd", operation, metaDetail(body), statusErr)
	}
	if readErr != nil {
		return gjson.Result{}, services.Wrap(services.ErrTransient, "untappd", operation, "read body", readErr)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, services.Wrap(services.ErrParse, "untappd", operation, "response is not valid JSON", nil)
	}

	payload := gjson.ParseBytes(body)
	if code := payload.Get("meta.code"); code.Exists() && code.Int() != http.StatusOK {
		return gjson.Result{}, c.metaError(operation, payload)
	}
	return payload, nil
}

func (c *APIClient) metaError(operation string, payload gjson.Result) error {
	code := int(payload.Get("meta.code").Int())
	errorType := payload.Get("meta.error_type").String()
	detail := metaDetail([]byte(payload.Raw))
	switch {
	case code == http.StatusUnauthorized || errorType == "invalid_auth":
		return services.Wrap(services.ErrAuth, "untappd", operation, detail, nil)
	case code == http.StatusTooManyRequests || errorType == "invalid_limit":
		c.startCooldown(errorType)
		return services.Wrap(services.ErrQuota, "untappd", operation, detail, nil)
	case code == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "untappd", operation, detail, nil)
	default:
		return services.Wrap(services.ErrTransient, "untappd", operation, detail, nil)
	}
}

func (c *APIClient) startCooldown(reason string) {
	until := c.clock.Now().Add(c.cooldown)
	for {
		current := c.quotaUntil.Load()
		if current >= until.UnixNano() {
			return
		}
		if c.quotaUntil.CompareAndSwap(current, until.UnixNano()) {
			break
		}
	}
	logging.WarnWithContext(c.logger, "untappd api quota exhausted", "untappd_quota_exhausted",
		logging.String("reason", reason),
		logging.Duration("cooldown", c.cooldown),
		logging.String(logging.FieldErrorHint, "wait for the hourly quota to reset or configure another access token"),
		logging.String(logging.FieldImpact, "searches use the web backend until the cooldown ends"),
	)
}

// markerOf returns the sentinel a status error unwraps to.
func markerOf(err error) error {
	for _, marker := range []error{services.ErrAuth, services.ErrNotFound, services.ErrTransient} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return services.ErrValidation
}

func metaDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	meta := gjson.GetBytes(body, "meta")
	if detail := meta.Get("error_detail").String(); detail != "" {
		return detail
	}
	return meta.Get("error_type").String()
}

func candidateFromJSON(beer, brewery gjson.Result) (catalog.Candidate, bool) {
	id := beer.Get("bid")
	name := strings.TrimSpace(beer.Get("beer_name").String())
	if !id.Exists() || id.Int() <= 0 || name == "" {
		return catalog.Candidate{}, false
	}
	cand := catalog.Candidate{
		ID:      strconv.FormatInt(id.Int(), 10),
		Name:    name,
		Brewery: strings.TrimSpace(brewery.Get("brewery_name").String()),
		Style:   strings.TrimSpace(beer.Get("beer_style").String()),
		ABV:     beer.Get("beer_abv").Float(),
		IBU:     beer.Get("beer_ibu").Float(),
		Backend: apiBackendName,
	}
	if label := beer.Get("beer_label_hd").String(); label != "" {
		cand.ImageURL = label
	} else {
		cand.ImageURL = beer.Get("beer_label").String()
	}
	if rating := beer.Get("rating_score"); rating.Exists() && rating.Float() > 0 {
		v := rating.Float()
		cand.Rating = &v
	}
	return cand, true
}
