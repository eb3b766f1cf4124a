package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudslice/reductionist/pkg/apperr"
	"github.com/cloudslice/reductionist/pkg/logging"
	"github.com/cloudslice/reductionist/pkg/request"
)

// HTTPStore fetches byte ranges from plain HTTP(S) object URLs. A single
// shared client reuses connections across requests, same as the registry
// client's shared transport.
type HTTPStore struct {
	client *http.Client
	log    logging.Logger
}

func NewHTTPStore(timeout time.Duration, log logging.Logger) *HTTPStore {
	return &HTTPStore{
		client: &http.Client{Timeout: timeout},
		log:    logging.Component(log, "objectstore.http"),
	}
}

func (h *HTTPStore) doRangeRequest(ctx context.Context, loc request.Locator, creds request.Credentials, offset, size int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.URL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "building HTTP request", err)
	}
	if size > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+size-1))
	}
	if creds.Present() {
		req.SetBasicAuth(creds.AccessKey, creds.SecretKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamIO, fmt.Sprintf("fetching %s", loc.URL), err)
	}
	return resp, nil
}

func (h *HTTPStore) FetchRange(ctx context.Context, loc request.Locator, creds request.Credentials, offset, size int64) ([]byte, error) {
	resp, err := h.doRangeRequest(ctx, loc, creds, offset, size)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus(loc, resp.StatusCode); err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(resp.Body, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, apperr.Wrap(apperr.UpstreamIO, "reading HTTP response body", err)
	}
	return buf[:n], nil
}

func (h *HTTPStore) IsAuthorized(ctx context.Context, loc request.Locator, creds request.Credentials) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, loc.URL, nil)
	if err != nil {
		return false, apperr.Wrap(apperr.BadRequest, "building HTTP HEAD request", err)
	}
	if creds.Present() {
		req.SetBasicAuth(creds.AccessKey, creds.SecretKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return false, apperr.Wrap(apperr.UpstreamIO, fmt.Sprintf("probing %s", loc.URL), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	case resp.StatusCode == http.StatusNotFound:
		return true, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, apperr.New(apperr.UpstreamIO, fmt.Sprintf("unexpected status %d probing %s", resp.StatusCode, loc.URL))
	}
}

func classifyHTTPStatus(loc request.Locator, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return apperr.New(apperr.Unauthorized, fmt.Sprintf("unauthorized fetching %s", loc.URL))
	case status == http.StatusForbidden:
		return apperr.New(apperr.Forbidden, fmt.Sprintf("forbidden fetching %s", loc.URL))
	case status == http.StatusNotFound:
		return apperr.New(apperr.NotFound, fmt.Sprintf("not found: %s", loc.URL))
	case status == http.StatusRequestedRangeNotSatisfiable:
		return apperr.New(apperr.RangeUnsatisfiable, fmt.Sprintf("range not satisfiable: %s", loc.URL))
	default:
		return apperr.New(apperr.UpstreamIO, fmt.Sprintf("unexpected status %d fetching %s", status, loc.URL))
	}
}
