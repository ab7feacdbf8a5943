package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	syncapp "github.com/oms/backend/internal/application/sync"
	"github.com/oms/backend/internal/domain/marketplace"
	"github.com/oms/backend/internal/interfaces/http/dto"
)

// ---------------------------------------------------------------------------
// In-memory marketplace fakes
// ---------------------------------------------------------------------------

type memConnectionRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*marketplace.Connection
}

func newMemConnectionRepo() *memConnectionRepo {
	return &memConnectionRepo{items: make(map[uuid.UUID]*marketplace.Connection)}
}

func (r *memConnectionRepo) FindByID(_ context.Context, id uuid.UUID) (*marketplace.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.items[id]
	if !ok {
		return nil, marketplace.ErrConnectionNotFound
	}
	copied := *conn
	return &copied, nil
}

func (r *memConnectionRepo) FindActive(_ context.Context) ([]*marketplace.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*marketplace.Connection
	for _, conn := range r.items {
		if conn.IsActive() {
			copied := *conn
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memConnectionRepo) FindByCompany(_ context.Context, companyID uuid.UUID) ([]*marketplace.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*marketplace.Connection
	for _, conn := range r.items {
		if conn.CompanyID == companyID {
			copied := *conn
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memConnectionRepo) Save(_ context.Context, conn *marketplace.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *conn
	r.items[conn.ID] = &copied
	return nil
}

type memJobRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*marketplace.SyncJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{items: make(map[uuid.UUID]*marketplace.SyncJob)}
}

func (r *memJobRepo) FindByID(_ context.Context, id uuid.UUID) (*marketplace.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.items[id]
	if !ok {
		return nil, marketplace.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *memJobRepo) TryStart(_ context.Context, job *marketplace.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.Status != marketplace.JobStatusPending {
		return marketplace.ErrJobNotPending
	}
	for _, existing := range r.items {
		if existing.ConnectionID == job.ConnectionID &&
			existing.JobType == job.JobType &&
			existing.Status == marketplace.JobStatusRunning {
			return marketplace.ErrJobAlreadyRunning
		}
	}
	if err := job.Start(); err != nil {
		return err
	}
	copied := *job
	r.items[job.ID] = &copied
	return nil
}

func (r *memJobRepo) Save(_ context.Context, job *marketplace.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *job
	r.items[job.ID] = &copied
	return nil
}

func (r *memJobRepo) List(_ context.Context, filter marketplace.JobFilter) ([]*marketplace.SyncJob, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*marketplace.SyncJob
	for _, job := range r.items {
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		if filter.ConnectionID != nil && job.ConnectionID != *filter.ConnectionID {
			continue
		}
		copied := *job
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *memJobRepo) FindRunning(_ context.Context, connectionID uuid.UUID, jobType marketplace.JobType) (*marketplace.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.items {
		if job.ConnectionID == connectionID && job.JobType == jobType && job.Status == marketplace.JobStatusRunning {
			copied := *job
			return &copied, nil
		}
	}
	return nil, marketplace.ErrJobNotFound
}

type memMappingRepo struct{}

func (memMappingRepo) FindByExternalSKU(context.Context, uuid.UUID, string) (*marketplace.SkuMapping, error) {
	return nil, marketplace.ErrSkuMappingNotFound
}

func (memMappingRepo) FindByConnection(context.Context, uuid.UUID) ([]*marketplace.SkuMapping, error) {
	return nil, nil
}

func (memMappingRepo) Save(context.Context, *marketplace.SkuMapping) error { return nil }

type memOrderRecordRepo struct{}

func (memOrderRecordRepo) Upsert(_ context.Context, records []*marketplace.OrderRecord) (int, error) {
	return len(records), nil
}

func (memOrderRecordRepo) FindByExternalID(context.Context, uuid.UUID, string) (*marketplace.OrderRecord, error) {
	return nil, marketplace.ErrRecordNotFound
}

func (memOrderRecordRepo) CountByJob(context.Context, uuid.UUID) (int64, error) { return 0, nil }

type memInventoryRecordRepo struct{}

func (memInventoryRecordRepo) Upsert(_ context.Context, records []*marketplace.InventoryRecord) (int, error) {
	return len(records), nil
}

func (memInventoryRecordRepo) FindBySKU(context.Context, uuid.UUID, string) ([]*marketplace.InventoryRecord, error) {
	return nil, nil
}

type memSettlementRecordRepo struct{}

func (memSettlementRecordRepo) Upsert(_ context.Context, records []*marketplace.SettlementRecord) (int, error) {
	return len(records), nil
}

func (memSettlementRecordRepo) FindByExternalID(context.Context, uuid.UUID, string) (*marketplace.SettlementRecord, error) {
	return nil, marketplace.ErrRecordNotFound
}

// stubMarketplaceAdapter holds every fetch until the test releases it, then
// answers one empty final page. Triggered jobs drain on a background
// goroutine, so the gate keeps them from mutating the job while the handler
// response is still being asserted.
type stubMarketplaceAdapter struct {
	code    marketplace.Code
	release chan struct{}
}

func (a *stubMarketplaceAdapter) Code() marketplace.Code { return a.code }

func (a *stubMarketplaceAdapter) FetchOrders(ctx context.Context, _ marketplace.Credentials, _ string, _ int) (*marketplace.OrderPage, error) {
	select {
	case <-a.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &marketplace.OrderPage{}, nil
}

func (a *stubMarketplaceAdapter) FetchInventory(ctx context.Context, _ marketplace.Credentials, _ string, _ int) (*marketplace.InventoryPage, error) {
	select {
	case <-a.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &marketplace.InventoryPage{}, nil
}

func (a *stubMarketplaceAdapter) FetchSettlements(ctx context.Context, _ marketplace.Credentials, _ string, _ int) (*marketplace.SettlementPage, error) {
	select {
	case <-a.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &marketplace.SettlementPage{}, nil
}

type stubMarketplaceRegistry struct {
	adapters map[marketplace.Code]marketplace.Adapter
}

func (r *stubMarketplaceRegistry) Resolve(code marketplace.Code) (marketplace.Adapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, marketplace.ErrMarketplaceNotSupported
	}
	return a, nil
}

func (r *stubMarketplaceRegistry) List() []marketplace.Adapter {
	out := make([]marketplace.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// ---------------------------------------------------------------------------
// Test rig
// ---------------------------------------------------------------------------

type syncRig struct {
	router      *gin.Engine
	connections *memConnectionRepo
	jobs        *memJobRepo
	connection  *marketplace.Connection
}

func newSyncRig(t *testing.T) *syncRig {
	t.Helper()

	connections := newMemConnectionRepo()
	jobs := newMemJobRepo()

	conn, err := marketplace.NewConnection(uuid.New(), marketplace.CodeShopify, "Main Store", marketplace.Credentials{
		ShopDomain:  "main-store.myshopify.com",
		AccessToken: "shpat_test",
	})
	require.NoError(t, err)
	require.NoError(t, connections.Save(context.Background(), conn))

	adapter := &stubMarketplaceAdapter{code: marketplace.CodeShopify, release: make(chan struct{})}
	t.Cleanup(func() { close(adapter.release) })
	registry := &stubMarketplaceRegistry{adapters: map[marketplace.Code]marketplace.Adapter{
		marketplace.CodeShopify: adapter,
	}}

	coordinator := syncapp.NewCoordinator(
		connections, jobs, memMappingRepo{},
		memOrderRecordRepo{}, memInventoryRecordRepo{}, memSettlementRecordRepo{},
		registry,
		syncapp.DefaultCoordinatorConfig(),
		zap.NewNop(),
	)

	h := NewSyncHandler(coordinator, zap.NewNop())
	router := gin.New()
	router.POST("/sync/connections/:id/trigger", h.Trigger)
	router.POST("/sync/jobs/:id/retry", h.Retry)
	router.GET("/sync/jobs/:id", h.GetJob)
	router.GET("/sync/jobs", h.ListJobs)

	return &syncRig{
		router:      router,
		connections: connections,
		jobs:        jobs,
		connection:  conn,
	}
}

func (rig *syncRig) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, req)
	return w
}

type syncJobBody struct {
	Success bool `json:"success"`
	Data    struct {
		ID           string `json:"id"`
		ConnectionID string `json:"connection_id"`
		JobType      string `json:"job_type"`
		ErrorDetail  string `json:"error_detail"`
		RetryOf      string `json:"retry_of"`
	} `json:"data"`
	Error *dto.ErrorInfo `json:"error"`
}

func decodeSyncJobBody(t *testing.T, w *httptest.ResponseRecorder) syncJobBody {
	t.Helper()
	var body syncJobBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSyncHandler_Trigger(t *testing.T) {
	t.Run("accepts and starts the job", func(t *testing.T) {
		rig := newSyncRig(t)

		w := rig.do(http.MethodPost, "/sync/connections/"+rig.connection.ID.String()+"/trigger", `{"job_type":"ORDER"}`)

		require.Equal(t, http.StatusAccepted, w.Code)
		body := decodeSyncJobBody(t, w)
		assert.True(t, body.Success)
		assert.NotEmpty(t, body.Data.ID)
		assert.Equal(t, rig.connection.ID.String(), body.Data.ConnectionID)
		assert.Equal(t, "ORDER", body.Data.JobType)
	})

	t.Run("second trigger conflicts while a job runs", func(t *testing.T) {
		rig := newSyncRig(t)
		job, err := marketplace.NewSyncJob(rig.connection.CompanyID, rig.connection.ID, marketplace.JobTypeOrder, "")
		require.NoError(t, err)
		require.NoError(t, rig.jobs.TryStart(context.Background(), job))

		w := rig.do(http.MethodPost, "/sync/connections/"+rig.connection.ID.String()+"/trigger", `{"job_type":"ORDER"}`)

		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeJobAlreadyRunning, decodeSyncJobBody(t, w).Error.Code)
	})

	t.Run("disabled connection answers 422", func(t *testing.T) {
		rig := newSyncRig(t)
		rig.connection.Disable()
		require.NoError(t, rig.connections.Save(context.Background(), rig.connection))

		w := rig.do(http.MethodPost, "/sync/connections/"+rig.connection.ID.String()+"/trigger", `{"job_type":"ORDER"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unknown connection answers 404", func(t *testing.T) {
		rig := newSyncRig(t)

		w := rig.do(http.MethodPost, "/sync/connections/"+uuid.NewString()+"/trigger", `{"job_type":"ORDER"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown job type answers 400", func(t *testing.T) {
		rig := newSyncRig(t)

		w := rig.do(http.MethodPost, "/sync/connections/"+rig.connection.ID.String()+"/trigger", `{"job_type":"REVIEWS"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed connection id answers 400", func(t *testing.T) {
		rig := newSyncRig(t)

		w := rig.do(http.MethodPost, "/sync/connections/nope/trigger", `{"job_type":"ORDER"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandler_Retry(t *testing.T) {
	failJob := func(t *testing.T, rig *syncRig, cursor string) *marketplace.SyncJob {
		t.Helper()
		job, err := marketplace.NewSyncJob(rig.connection.CompanyID, rig.connection.ID, marketplace.JobTypeOrder, cursor)
		require.NoError(t, err)
		require.NoError(t, job.Start())
		require.NoError(t, job.Fail("upstream gone"))
		require.NoError(t, rig.jobs.Save(context.Background(), job))
		return job
	}

	t.Run("accepts a retry of a failed job", func(t *testing.T) {
		rig := newSyncRig(t)
		failed := failJob(t, rig, "page-4")

		w := rig.do(http.MethodPost, "/sync/jobs/"+failed.ID.String()+"/retry", "")

		require.Equal(t, http.StatusAccepted, w.Code)
		body := decodeSyncJobBody(t, w)
		assert.NotEqual(t, failed.ID.String(), body.Data.ID)
		assert.Equal(t, failed.ID.String(), body.Data.RetryOf)
	})

	t.Run("succeeded job answers 409", func(t *testing.T) {
		rig := newSyncRig(t)
		job, err := marketplace.NewSyncJob(rig.connection.CompanyID, rig.connection.ID, marketplace.JobTypeOrder, "")
		require.NoError(t, err)
		require.NoError(t, job.Start())
		require.NoError(t, job.Succeed())
		require.NoError(t, rig.jobs.Save(context.Background(), job))

		w := rig.do(http.MethodPost, "/sync/jobs/"+job.ID.String()+"/retry", "")

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown job answers 404", func(t *testing.T) {
		rig := newSyncRig(t)

		w := rig.do(http.MethodPost, "/sync/jobs/"+uuid.NewString()+"/retry", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSyncHandler_GetJob(t *testing.T) {
	t.Run("returns the job", func(t *testing.T) {
		rig := newSyncRig(t)
		job, err := marketplace.NewSyncJob(rig.connection.CompanyID, rig.connection.ID, marketplace.JobTypeInventory, "")
		require.NoError(t, err)
		require.NoError(t, rig.jobs.Save(context.Background(), job))

		w := rig.do(http.MethodGet, "/sync/jobs/"+job.ID.String(), "")

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeSyncJobBody(t, w)
		assert.Equal(t, job.ID.String(), body.Data.ID)
		assert.Equal(t, "INVENTORY", body.Data.JobType)
	})

	t.Run("unknown job answers 404", func(t *testing.T) {
		rig := newSyncRig(t)

		w := rig.do(http.MethodGet, "/sync/jobs/"+uuid.NewString(), "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSyncHandler_ListJobs(t *testing.T) {
	rig := newSyncRig(t)
	for _, jobType := range []marketplace.JobType{marketplace.JobTypeOrder, marketplace.JobTypeSettlement} {
		job, err := marketplace.NewSyncJob(rig.connection.CompanyID, rig.connection.ID, jobType, "")
		require.NoError(t, err)
		require.NoError(t, rig.jobs.Save(context.Background(), job))
	}

	t.Run("lists jobs with pagination meta", func(t *testing.T) {
		w := rig.do(http.MethodGet, "/sync/jobs?connection_id="+rig.connection.ID.String(), "")

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data []json.RawMessage `json:"data"`
			Meta *dto.Meta         `json:"meta"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Data, 2)
		require.NotNil(t, body.Meta)
		assert.Equal(t, int64(2), body.Meta.Total)
	})

	t.Run("malformed status filter is passed through empty", func(t *testing.T) {
		w := rig.do(http.MethodGet, "/sync/jobs?connection_id=nope", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
