// Package objectstore fetches byte ranges from S3-compatible and plain
// HTTP(S) backends behind a single Store interface, and classifies
// transport/auth failures into the service's error taxonomy.
package objectstore

import (
	"context"

	"github.com/cloudslice/reductionist/pkg/request"
)

// Store fetches a byte range of an object and probes whether a set of
// credentials is accepted by the backend without transferring the object.
type Store interface {
	FetchRange(ctx context.Context, loc request.Locator, creds request.Credentials, offset, size int64) ([]byte, error)
	IsAuthorized(ctx context.Context, loc request.Locator, creds request.Credentials) (bool, error)
}

// Router dispatches to the Store implementation matching a request's
// backend. The S3 store caches per-(endpoint, credentials) clients; the
// HTTP store shares a single client.
type Router struct {
	s3   Store
	http Store
}

func NewRouter(s3, http Store) *Router {
	return &Router{s3: s3, http: http}
}

func (r *Router) storeFor(backend request.Backend) Store {
	switch backend {
	case request.BackendS3:
		return r.s3
	default:
		return r.http
	}
}

func (r *Router) FetchRange(ctx context.Context, backend request.Backend, loc request.Locator, creds request.Credentials, offset, size int64) ([]byte, error) {
	return r.storeFor(backend).FetchRange(ctx, loc, creds, offset, size)
}

func (r *Router) IsAuthorized(ctx context.Context, backend request.Backend, loc request.Locator, creds request.Credentials) (bool, error) {
	return r.storeFor(backend).IsAuthorized(ctx, loc, creds)
}
