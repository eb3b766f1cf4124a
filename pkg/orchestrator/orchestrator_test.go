package orchestrator

import (
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudslice/reductionist/pkg/governor"
	"github.com/cloudslice/reductionist/pkg/logging"
	"github.com/cloudslice/reductionist/pkg/metrics"
	"github.com/cloudslice/reductionist/pkg/objectstore"
	"github.com/cloudslice/reductionist/pkg/request"
)

type stubStore struct {
	data []byte
}

func (s *stubStore) FetchRange(ctx context.Context, loc request.Locator, creds request.Credentials, offset, size int64) ([]byte, error) {
	return s.data, nil
}

func (s *stubStore) IsAuthorized(ctx context.Context, loc request.Locator, creds request.Credentials) (bool, error) {
	return true, nil
}

func u32le(values ...uint32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func testOrchestrator(t *testing.T, data []byte) *Orchestrator {
	t.Helper()
	store := &stubStore{data: data}
	router := objectstore.NewRouter(store, store)
	gov := governor.New(governor.Config{S3Permits: 4, MemPermits: 1 << 30, CPUPermits: 4})
	return New(logging.NewRoot("error", io.Discard), Config{
		Store:          router,
		Governor:       gov,
		Metrics:        metrics.New(),
		AcquireTimeout: time.Second,
	})
}

func TestReduceSumV2CBOR(t *testing.T) {
	data := u32le(1, 2, 3, 4, 5)
	o := testOrchestrator(t, data)

	body := `{"interface_type":"S3","url":"s3://bucket/obj","dtype":"u32","size":20,"shape":[5],"offset":0}`
	req := httptest.NewRequest(http.MethodPost, "/v2/sum", strings.NewReader(body))
	rec := httptest.NewRecorder()
	o.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/cbor", rec.Header().Get("Content-Type"))

	var decoded map[string]any
	require.NoError(t, cbor.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, "uint32", decoded["dtype"])
}

func TestReduceSumV1Legacy(t *testing.T) {
	data := u32le(1, 2, 3, 4, 5)
	o := testOrchestrator(t, data)

	body := `{"source":"https://s3.example.com","bucket":"b","object":"o","dtype":"u32","size":20,"shape":[5],"offset":0}`
	req := httptest.NewRequest(http.MethodPost, "/v1/sum", strings.NewReader(body))
	rec := httptest.NewRecorder()
	o.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "uint32", rec.Header().Get("x-activestorage-dtype"))
	assert.Equal(t, uint32(15), binary.LittleEndian.Uint32(rec.Body.Bytes()))
}

func TestReduceBadRequestOnUnknownField(t *testing.T) {
	o := testOrchestrator(t, u32le(1, 2, 3))

	body := `{"source":"x","bucket":"b","object":"o","dtype":"u32","size":12,"shape":[3],"bogus":true}`
	req := httptest.NewRequest(http.MethodPost, "/v2/sum", strings.NewReader(body))
	rec := httptest.NewRecorder()
	o.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestHealthz(t *testing.T) {
	o := testOrchestrator(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	o.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSchemaEndpoint(t *testing.T) {
	o := testOrchestrator(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/reductionist-schema", nil)
	rec := httptest.NewRecorder()
	o.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "interface_type")
}

func TestMetricsEndpoint(t *testing.T) {
	o := testOrchestrator(t, u32le(1))
	body := `{"source":"x","bucket":"b","object":"o","dtype":"u32","size":4,"shape":[1]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/sum", strings.NewReader(body))
	rec := httptest.NewRecorder()
	o.ServeHTTP(rec, req)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	o.ServeHTTP(metricsRec, metricsReq)
	assert.Contains(t, metricsRec.Body.String(), "reductionist_requests_total")
}
