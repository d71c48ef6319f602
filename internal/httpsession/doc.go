// Package httpsession is the single funnel for outbound HTTP. It paces
// requests per registrable domain, retries transient failures with bounded
// exponential backoff, and honours Retry-After on 429 responses.
//
// Pacing happens inside the transport, so every attempt (including retries
// issued by go-retryablehttp) waits its turn and stamps the domain's
// last-request time whether it succeeds or fails.
package httpsession
