package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"sovid/internal/platform/config"
	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

// HTTPClient talks JSON over HTTP to the registry endpoint.
//
// Timeout classification matters here: a deadline hit on Write is reported as
// sentinel.ErrAmbiguous because the registry may have committed the entry
// before the response was lost. Reads are side-effect free, so their timeouts
// degrade to ErrUnavailable.
type HTTPClient struct {
	base    string
	timeout time.Duration
	http    *http.Client
}

// NewHTTPClient constructs a registry client for the configured endpoint.
func NewHTTPClient(cfg config.LedgerConfig) *HTTPClient {
	return &HTTPClient{
		base:    cfg.Endpoint,
		timeout: cfg.Timeout,
		http:    &http.Client{},
	}
}

type writeRequest struct {
	DID   string `json:"did"`
	Owner string `json:"owner"`
}

type entryResponse struct {
	DID   string `json:"did"`
	Owner string `json:"owner"`
}

func (c *HTTPClient) Write(ctx context.Context, did id.DID, owner id.PrincipalID) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(writeRequest{DID: did.String(), Owner: owner.String()})
	if err != nil {
		return fmt.Errorf("marshal ledger write: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/registry/dids", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ledger write request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return sentinel.ErrAmbiguous
		}
		return fmt.Errorf("ledger write: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusConflict:
		// The registry distinguishes a taken DID value from an owner that
		// already holds an entry; both arrive as 409 with a body code.
		var conflict struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&conflict); err == nil && conflict.Error == "owner_registered" {
			return sentinel.ErrInvalidState
		}
		return sentinel.ErrConflict
	case http.StatusGatewayTimeout:
		return sentinel.ErrAmbiguous
	default:
		return fmt.Errorf("ledger write status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
}

func (c *HTTPClient) Read(ctx context.Context, did id.DID) (id.PrincipalID, error) {
	entry, err := c.get(ctx, "/registry/dids/"+url.PathEscape(did.String()))
	if err != nil {
		return "", err
	}
	return id.PrincipalID(entry.Owner), nil
}

func (c *HTTPClient) OwnerDID(ctx context.Context, owner id.PrincipalID) (id.DID, error) {
	entry, err := c.get(ctx, "/registry/owners/"+url.PathEscape(owner.String()))
	if err != nil {
		return "", err
	}
	return id.DID(entry.DID), nil
}

func (c *HTTPClient) get(ctx context.Context, path string) (entryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return entryResponse{}, fmt.Errorf("build ledger read request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return entryResponse{}, fmt.Errorf("ledger read: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var entry entryResponse
		if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
			return entryResponse{}, fmt.Errorf("decode ledger entry: %w", err)
		}
		return entry, nil
	case http.StatusNotFound:
		return entryResponse{}, sentinel.ErrNotFound
	default:
		return entryResponse{}, fmt.Errorf("ledger read status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
