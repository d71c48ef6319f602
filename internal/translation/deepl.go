package translation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"strinks/internal/httpsession"
	"strinks/internal/services"
)

const maxDeepLBody = 1 << 20

// statusQuotaExceeded is DeepL's "character limit reached" status.
const statusQuotaExceeded = 456

// DeepLClient calls the DeepL translate endpoint through a shared session.
type DeepLClient struct {
	session *httpsession.Session
	baseURL string
	apiKey  string
}

// NewDeepLClient returns a client for baseURL (for example
// https://api-free.deepl.com/v2). It returns nil when apiKey is empty.
func NewDeepLClient(session *httpsession.Session, baseURL, apiKey string) *DeepLClient {
	apiKey = strings.TrimSpace(apiKey)
	if session == nil || apiKey == "" {
		return nil
	}
	return &DeepLClient{
		session: session,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
	}
}

// Translate translates text from one language code to another ("ja" -> "en").
func (c *DeepLClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	if c == nil {
		return "", services.Wrap(services.ErrConfiguration, "deepl", "translate", "api key not configured", nil)
	}
	form := url.Values{}
	form.Set("text", text)
	form.Set("source_lang", deeplLang(from, false))
	form.Set("target_lang", deeplLang(to, true))
	form.Set("split_sentences", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)

	resp, err := c.session.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("deepl translate: %w", ctxErr)
		}
		return "", services.Wrap(services.ErrTransient, "deepl", "translate", "request failed", err)
	}
	body, readErr := httpsession.ReadBody(resp, maxDeepLBody)
	if resp.StatusCode == statusQuotaExceeded {
		return "", services.Wrap(services.ErrQuota, "deepl", "translate", "character quota exceeded", nil)
	}
	if statusErr := httpsession.CheckStatus(resp); statusErr != nil {
		marker := services.ErrTransient
		if errors.Is(statusErr, services.ErrAuth) {
			marker = services.ErrAuth
		}
		return "", services.Wrap(marker, "deepl", "translate", "", statusErr)
	}
	if readErr != nil {
		return "", services.Wrap(services.ErrTransient, "deepl", "translate", "read body", readErr)
	}
	if !gjson.ValidBytes(body) {
		return "", services.Wrap(services.ErrParse, "deepl", "translate", "response is not valid JSON", nil)
	}
	translated := gjson.GetBytes(body, "translations.0.text")
	if !translated.Exists() || strings.TrimSpace(translated.String()) == "" {
		return "", services.Wrap(services.ErrParse, "deepl", "translate", "response has no translation", nil)
	}
	return strings.TrimSpace(translated.String()), nil
}

// deeplLang maps ISO codes onto DeepL's; English targets need a variant.
func deeplLang(code string, target bool) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if target && code == "EN" {
		return "EN-US"
	}
	return code
}
