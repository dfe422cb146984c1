package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"notesync/models"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Transport
//
// One RPC-style exchange: POST the batch of local payloads, receive the
// server's complete authoritative set for the account (not a delta). The
// transport classifies failures into the taxonomy the engine acts on; it
// performs no retries itself — the scheduler's next tick is the retry.
// ============================================================================

// Sentinel classifications for exchange failures. Matched with errors.Is.
var (
	// ErrAuthInvalid: the server no longer recognizes the bearer credential
	// (HTTP 404 by protocol). Non-retryable without a new credential.
	ErrAuthInvalid = errors.New("auth credential no longer recognized")
	// ErrRateLimited: the server refused the attempt (HTTP 429). Retried
	// naturally on the next scheduled tick.
	ErrRateLimited = errors.New("sync rate limited by server")
)

// Transport performs the network exchange for a sync cycle.
type Transport interface {
	Exchange(ctx context.Context, token string, batch []models.SyncPayload) ([]models.SyncRecord, error)
}

// HTTPTransport talks JSON over HTTP to the hub's sync endpoint.
type HTTPTransport struct {
	endpoint      string
	client        *http.Client
	msgpackValues bool
}

// NewHTTPTransport builds the transport for the hub at baseURL.
func NewHTTPTransport(baseURL string, timeout time.Duration, msgpackValues bool) *HTTPTransport {
	return &HTTPTransport{
		endpoint:      strings.TrimRight(baseURL, "/") + "/item/sync",
		client:        &http.Client{Timeout: timeout},
		msgpackValues: msgpackValues,
	}
}

// Exchange implements Transport.
func (t *HTTPTransport) Exchange(ctx context.Context, token string, batch []models.SyncPayload) ([]models.SyncRecord, error) {
	if batch == nil {
		batch = []models.SyncPayload{} // the server expects an array, never null
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, serr.Wrap(err, "failed to marshal sync batch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, serr.Wrap(err, "failed to create sync request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if t.msgpackValues {
		req.Header.Set("X-Body-Encoding", "msgpack")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, serr.Wrap(err, "sync request failed")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to parse
	case http.StatusNotFound:
		return nil, ErrAuthInvalid
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, serr.New(fmt.Sprintf("sync request returned status %d", resp.StatusCode))
	}

	var records []models.SyncRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, serr.Wrap(err, "failed to decode sync response")
	}
	return records, nil
}
