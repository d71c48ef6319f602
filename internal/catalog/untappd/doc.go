// Package untappd implements the catalog backends for Untappd.
//
// APIClient talks to the v4 JSON API with client credentials or a user
// access token and parses payloads with gjson. Authentication failures and
// quota exhaustion are reported as services.ErrAuth and services.ErrQuota;
// after a quota hit the client fails fast for a cooldown period instead of
// spending requests it knows will be refused.
//
// WebClient scrapes the public search pages with goquery. It needs no
// credentials and serves as the fallback when the API is unavailable. Its
// page fetches are capped by an hourly request budget.
//
// Both clients send every request through an httpsession.Session, so they
// share the per-domain pacing for untappd.com.
package untappd
