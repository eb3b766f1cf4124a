// Package orchestrator implements the Request Orchestrator: the HTTP
// surface that drives a request through validation, authorization,
// cache-aware download, filter inversion, typed-view construction, kernel
// execution, and response serialization.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloudslice/reductionist/pkg/apperr"
	"github.com/cloudslice/reductionist/pkg/cache"
	"github.com/cloudslice/reductionist/pkg/filter"
	"github.com/cloudslice/reductionist/pkg/governor"
	"github.com/cloudslice/reductionist/pkg/kernel"
	"github.com/cloudslice/reductionist/pkg/logging"
	"github.com/cloudslice/reductionist/pkg/metrics"
	"github.com/cloudslice/reductionist/pkg/objectstore"
	"github.com/cloudslice/reductionist/pkg/request"
	"github.com/cloudslice/reductionist/pkg/response"
	"github.com/cloudslice/reductionist/pkg/routing"
	"github.com/cloudslice/reductionist/pkg/typedview"
)

// maximumRequestBodyBytes bounds the JSON request body the orchestrator
// will read before parsing, independent of the decompression-bomb guard
// applied later to the fetched object bytes.
const maximumRequestBodyBytes = 1 << 20

// schemaDocument is served at GET /.well-known/reductionist-schema.
var schemaDocument []byte

// Orchestrator wires components A, B, C, D, E, F, G and I behind the
// service's HTTP routes and owns the ServeMux swap lock, mirroring the
// teacher's atomic route-table-rebuild pattern.
type Orchestrator struct {
	log       logging.Logger
	store     *objectstore.Router
	cache     *cache.Cache
	cacheMode cache.AuthMode
	keyFormat string
	gov       *governor.Governor
	metrics   *metrics.Metrics

	acquireTimeout time.Duration

	router *routing.NormalizedServeMux
	lock   sync.RWMutex
}

type Config struct {
	Store          *objectstore.Router
	Cache          *cache.Cache // nil disables the chunk cache entirely
	CacheMode      cache.AuthMode
	KeyFormat      string
	Governor       *governor.Governor
	Metrics        *metrics.Metrics
	AcquireTimeout time.Duration
}

func New(log logging.Logger, cfg Config) *Orchestrator {
	o := &Orchestrator{
		log:            logging.Component(log, "orchestrator"),
		store:          cfg.Store,
		cache:          cfg.Cache,
		cacheMode:      cfg.CacheMode,
		keyFormat:      cfg.KeyFormat,
		gov:            cfg.Governor,
		metrics:        cfg.Metrics,
		acquireTimeout: cfg.AcquireTimeout,
	}
	o.rebuildRoutes()
	return o
}

func (o *Orchestrator) rebuildRoutes() {
	o.lock.Lock()
	defer o.lock.Unlock()

	mux := routing.NewNormalizedServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	for _, op := range request.AllOperations() {
		opName := string(op)
		mux.HandleFunc("POST /v1/"+opName, o.handleReduce(op, response.V1))
		mux.HandleFunc("POST /v2/"+opName, o.handleReduce(op, response.V2))
	}
	mux.HandleFunc("GET /.well-known/reductionist-schema", o.handleSchema)
	mux.HandleFunc("GET /healthz", o.handleHealthz)
	if o.metrics != nil {
		mux.Handle("GET /metrics", o.metrics.Handler())
	}

	o.router = mux
}

// Run drives the cache writer/pruner background worker until ctx is
// cancelled, using the same errgroup-coordinated worker pattern as the
// rest of the pipeline's long-running tasks.
func (o *Orchestrator) Run(ctx context.Context, cachePruneInterval time.Duration) error {
	if o.cache == nil {
		<-ctx.Done()
		return nil
	}

	workers, workerCtx := errgroup.WithContext(ctx)
	workers.Go(func() error {
		return o.cache.Run(workerCtx, cachePruneInterval)
	})
	return workers.Wait()
}

func (o *Orchestrator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.lock.RLock()
	defer o.lock.RUnlock()
	o.router.ServeHTTP(w, r)
}

func (o *Orchestrator) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (o *Orchestrator) handleSchema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(schemaDocument)
}

// handleReduce returns the handler for one (operation, wire version) pair.
// The state machine below is Received→Validated→Authorized→DataReady→
// Reduced→Responded: each step either advances or returns a structured
// error, recovering from panics inside the kernel stage as INTERNAL.
func (o *Orchestrator) handleReduce(op request.Operation, version response.Version) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if o.metrics != nil {
			o.metrics.InFlightInc()
			defer o.metrics.InFlightDec()
		}

		ver := version
		if accept := r.Header.Get("Accept"); accept != "" {
			ver = response.WithAcceptOverride(accept, version)
		}

		status := "200"
		defer func() {
			if o.metrics != nil {
				o.metrics.ObserveRequest(string(op), status, time.Since(start))
			}
		}()

		desc, err := o.receiveAndValidate(w, r, op)
		if err != nil {
			status = writeFailure(w, err, o.log)
			return
		}

		if err := o.authorize(r.Context(), desc); err != nil {
			status = writeFailure(w, err, o.log)
			return
		}

		raw, err := o.dataReady(r.Context(), desc)
		if err != nil {
			status = writeFailure(w, err, o.log)
			return
		}

		res, err := o.reduce(raw, desc)
		if err != nil {
			status = writeFailure(w, err, o.log)
			return
		}

		if err := response.Write(w, res, ver); err != nil {
			o.log.WithError(err).Error("failed writing response body")
		}
	}
}

// receiveAndValidate is the Received→Validated transition: parse the body
// and enforce the request model's invariants.
func (o *Orchestrator) receiveAndValidate(w http.ResponseWriter, r *http.Request, op request.Operation) (*request.Descriptor, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maximumRequestBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperr.New(apperr.BadRequest, "request body too large")
		}
		return nil, apperr.Wrap(apperr.BadRequest, "reading request body", err)
	}

	creds := credentialsFromRequest(r)
	desc, err := request.Decode(bytes.NewReader(body), request.DecodeOptions{Credentials: creds, Operation: op})
	if err != nil {
		return nil, err
	}
	if err := request.Validate(desc); err != nil {
		return nil, err
	}
	return desc, nil
}

// authorize is the Validated→Authorized transition: only the shared-with-
// check cache mode probes the object store ahead of the fetch, via the
// cache's configured AuthChecker (wired to the store's IsAuthorized in
// main.go) so the probe and the cache's notion of "authorized" stay the
// same code path.
func (o *Orchestrator) authorize(ctx context.Context, desc *request.Descriptor) error {
	if o.cache == nil || o.cacheMode != cache.AuthSharedWithCheck {
		return nil
	}
	ok, err := o.cache.Authorized(ctx, desc.Backend, desc.Locator, desc.Credentials)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.Forbidden, "credentials rejected by object store")
	}
	return nil
}

// dataReady is the Authorized→DataReady transition: try the cache, fall
// back to a gated fetch plus filter inversion, and fire-and-forget a cache
// write on a miss.
func (o *Orchestrator) dataReady(ctx context.Context, desc *request.Descriptor) ([]byte, error) {
	var cacheKey string
	if o.cache != nil {
		identity := desc.Credentials.AccessKey
		cacheKey = cache.BuildKey(o.keyFormat, desc, identity)
		if data, ok := o.cache.Get(cacheKey); ok {
			if o.metrics != nil {
				o.metrics.CacheHit()
			}
			return data, nil
		}
		if o.metrics != nil {
			o.metrics.CacheMiss()
		}
	}

	if err := o.gov.AcquireWithTimeout(ctx, o.gov.S3, 1, o.acquireTimeout); err != nil {
		return nil, resourceExhausted("s3", err)
	}
	defer o.gov.S3.Release(1)

	expectedDecoded := uint64(desc.ElementCount() * int64(desc.DType.Size()))
	if err := o.gov.AcquireWithTimeout(ctx, o.gov.Mem, expectedDecoded, o.acquireTimeout); err != nil {
		return nil, resourceExhausted("memory", err)
	}
	defer o.gov.Mem.Release(expectedDecoded)

	raw, err := o.store.FetchRange(ctx, desc.Backend, desc.Locator, desc.Credentials, desc.Offset, desc.Size)
	if err != nil {
		return nil, err
	}

	if err := o.gov.AcquireWithTimeout(ctx, o.gov.CPU, 1, o.acquireTimeout); err != nil {
		return nil, resourceExhausted("cpu", err)
	}
	defer o.gov.CPU.Release(1)

	decoded, err := filter.Invert(raw, desc.Compression, desc.Filters, int64(expectedDecoded))
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		// The writer gets its own copy: typedview.New later byte-swaps
		// decoded in place when the request's byte order is not native.
		o.cache.Put(cacheKey, append([]byte(nil), decoded...))
	}
	return decoded, nil
}

// reduce is the DataReady→Reduced transition: build the typed view and run
// the operation kernel, recovering a kernel panic as an INTERNAL error so a
// bad slice index never takes the process down.
func (o *Orchestrator) reduce(raw []byte, desc *request.Descriptor) (result *kernel.Result, err error) {
	if err := o.gov.AcquireWithTimeout(context.Background(), o.gov.CPU, 1, o.acquireTimeout); err != nil {
		return nil, resourceExhausted("cpu", err)
	}
	defer o.gov.CPU.Release(1)

	defer func() {
		if rec := recover(); rec != nil {
			err = apperr.New(apperr.Internal, fmt.Sprintf("kernel panic: %v", rec))
		}
	}()

	view, viewErr := typedview.New(raw, desc.DType, desc.Shape, desc.Order, desc.ByteOrder)
	if viewErr != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "constructing typed view", viewErr)
	}
	return kernel.Execute(view, desc)
}

func resourceExhausted(resource string, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.Timeout, fmt.Sprintf("timed out acquiring %s permit", resource), cause)
	}
	return apperr.Wrap(apperr.ResourceExhausted, fmt.Sprintf("could not acquire %s permit", resource), cause)
}

func writeFailure(w http.ResponseWriter, err error, log logging.Logger) string {
	kind := apperr.KindOf(err)
	log.WithError(err).WithField("kind", kind).Warn("request failed")
	response.WriteError(w, err)
	return strconv.Itoa(apperr.Status(kind))
}

func credentialsFromRequest(r *http.Request) request.Credentials {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return request.Credentials{}
	}
	return request.Credentials{AccessKey: user, SecretKey: pass}
}
