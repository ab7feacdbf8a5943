package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/application/tracking"
	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
	"github.com/oms/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// In-memory fakes shared by the handler tests
// ---------------------------------------------------------------------------

type memTransporterRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*delivery.Transporter
}

func newMemTransporterRepo() *memTransporterRepo {
	return &memTransporterRepo{items: make(map[uuid.UUID]*delivery.Transporter)}
}

func (r *memTransporterRepo) FindByID(_ context.Context, id uuid.UUID) (*delivery.Transporter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, delivery.ErrTransporterNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memTransporterRepo) FindEnabled(_ context.Context) ([]delivery.Transporter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery.Transporter
	for _, t := range r.items {
		if t.Enabled {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memTransporterRepo) FindEnabledByCompany(_ context.Context, companyID uuid.UUID) ([]delivery.Transporter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery.Transporter
	for _, t := range r.items {
		if t.Enabled && t.CompanyID == companyID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memTransporterRepo) Save(_ context.Context, t *delivery.Transporter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *t
	r.items[t.ID] = &copied
	return nil
}

type memDeliveryRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*delivery.Delivery
}

func newMemDeliveryRepo() *memDeliveryRepo {
	return &memDeliveryRepo{items: make(map[uuid.UUID]*delivery.Delivery)}
}

func (r *memDeliveryRepo) FindByID(_ context.Context, id uuid.UUID) (*delivery.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return nil, delivery.ErrDeliveryNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *memDeliveryRepo) FindByTransporterAndAWB(_ context.Context, transporterID uuid.UUID, awb string) (*delivery.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.items {
		if d.TransporterID == transporterID && d.AWB == awb {
			copied := *d
			return &copied, nil
		}
	}
	return nil, delivery.ErrDeliveryNotFound
}

func (r *memDeliveryRepo) FindOpenByTransporter(_ context.Context, transporterID uuid.UUID, _ int) ([]delivery.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery.Delivery
	for _, d := range r.items {
		if d.TransporterID == transporterID && d.AWB != "" && !d.Status.IsTerminal() {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memDeliveryRepo) Save(_ context.Context, d *delivery.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *d
	r.items[d.ID] = &copied
	return nil
}

type memEventRepo struct {
	mu      sync.Mutex
	entries []*carrier.WebhookEvent
}

func (r *memEventRepo) Append(_ context.Context, ev *carrier.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *ev
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *memEventRepo) FindByKey(_ context.Context, key string) (*carrier.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].IdempotencyKey == key && r.entries[i].Outcome.IsFinal() {
			copied := *r.entries[i]
			return &copied, nil
		}
	}
	return nil, carrier.ErrEventNotFound
}

func (r *memEventRepo) FindDeferredDue(_ context.Context, now time.Time, limit int) ([]carrier.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []carrier.WebhookEvent
	for _, ev := range r.entries {
		if ev.Outcome == carrier.OutcomeDeferred && ev.NextRetryAt != nil && !ev.NextRetryAt.After(now) {
			out = append(out, *ev)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memEventRepo) Update(_ context.Context, ev *carrier.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == ev.ID {
			copied := *ev
			r.entries[i] = &copied
			return nil
		}
	}
	return carrier.ErrEventNotFound
}

func (r *memEventRepo) List(_ context.Context, filter carrier.EventFilter) ([]carrier.WebhookEvent, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []carrier.WebhookEvent
	for i := len(r.entries) - 1; i >= 0; i-- {
		ev := r.entries[i]
		if filter.AWB != "" && ev.AWB != filter.AWB {
			continue
		}
		if filter.Outcome != nil && ev.Outcome != *filter.Outcome {
			continue
		}
		out = append(out, *ev)
	}
	return out, int64(len(out)), nil
}

func (r *memEventRepo) outcomes() []carrier.EventOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]carrier.EventOutcome, len(r.entries))
	for i, ev := range r.entries {
		out[i] = ev.Outcome
	}
	return out
}

type memDedupeStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemDedupeStore() *memDedupeStore {
	return &memDedupeStore{keys: make(map[string]bool)}
}

func (s *memDedupeStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memDedupeStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memDedupeStore) Close() error { return nil }

// memApplier persists delivery and event together, like the real
// transactional applier but without a database.
type memApplier struct {
	deliveries *memDeliveryRepo
	events     *memEventRepo
}

func (a *memApplier) ApplyAndLog(ctx context.Context, d *delivery.Delivery, ev *carrier.WebhookEvent) error {
	if err := a.deliveries.Save(ctx, d); err != nil {
		return err
	}
	a.events.mu.Lock()
	for i := range a.events.entries {
		if a.events.entries[i].ID == ev.ID {
			copied := *ev
			a.events.entries[i] = &copied
			a.events.mu.Unlock()
			return nil
		}
	}
	a.events.mu.Unlock()
	return a.events.Append(ctx, ev)
}

// stubCarrierAdapter answers ParseWebhook and Track with canned results
type stubCarrierAdapter struct {
	code         carrier.Code
	parseEv      *carrier.TrackingEvent
	parseErr     error
	trackResults []carrier.TrackResult
	trackErr     error
}

func (a *stubCarrierAdapter) Code() carrier.Code { return a.code }

func (a *stubCarrierAdapter) CreateShipment(context.Context, delivery.Credentials, carrier.ShipmentRequest) (*carrier.ShipmentResult, error) {
	return nil, carrier.ErrCarrierNotSupported
}

func (a *stubCarrierAdapter) Track(context.Context, delivery.Credentials, []string) ([]carrier.TrackResult, error) {
	return a.trackResults, a.trackErr
}

func (a *stubCarrierAdapter) Cancel(context.Context, delivery.Credentials, string) (*carrier.CancelResult, error) {
	return nil, carrier.ErrCarrierNotSupported
}

func (a *stubCarrierAdapter) ParseWebhook([]byte, http.Header, string) (*carrier.TrackingEvent, error) {
	if a.parseErr != nil {
		return nil, a.parseErr
	}
	copied := *a.parseEv
	return &copied, nil
}

func (a *stubCarrierAdapter) RateQuote(context.Context, delivery.Credentials, carrier.RateRequest) ([]carrier.RateOption, error) {
	return nil, carrier.ErrCarrierNotSupported
}

func (a *stubCarrierAdapter) Serviceability(context.Context, delivery.Credentials, string) (bool, error) {
	return false, carrier.ErrCarrierNotSupported
}

type stubCarrierRegistry struct {
	adapters map[carrier.Code]carrier.Adapter
}

func (r *stubCarrierRegistry) Resolve(code carrier.Code) (carrier.Adapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, carrier.ErrCarrierNotSupported
	}
	return a, nil
}

func (r *stubCarrierRegistry) List() []carrier.Adapter {
	out := make([]carrier.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// ---------------------------------------------------------------------------
// Test rig
// ---------------------------------------------------------------------------

type webhookRig struct {
	router       *gin.Engine
	transporters *memTransporterRepo
	deliveries   *memDeliveryRepo
	events       *memEventRepo
	adapter      *stubCarrierAdapter
	transporter  *delivery.Transporter
}

func newWebhookRig(t *testing.T) *webhookRig {
	t.Helper()

	transporters := newMemTransporterRepo()
	deliveries := newMemDeliveryRepo()
	events := &memEventRepo{}
	dedupe := newMemDedupeStore()
	applier := &memApplier{deliveries: deliveries, events: events}

	pipeline := tracking.NewStatusPipeline(
		deliveries, transporters, events,
		carrier.NewDefaultStatusMapper(),
		dedupe, applier,
		tracking.DefaultPipelineConfig(),
		zap.NewNop(),
	)

	tr, err := delivery.NewTransporter(uuid.New(), carrier.CodeShiprocket.String(), "Shiprocket Main", delivery.Credentials{APIKey: "key"})
	require.NoError(t, err)
	tr.WebhookSecret = "hook-secret"
	require.NoError(t, transporters.Save(context.Background(), tr))

	adapter := &stubCarrierAdapter{code: carrier.CodeShiprocket}
	registry := &stubCarrierRegistry{adapters: map[carrier.Code]carrier.Adapter{
		carrier.CodeShiprocket: adapter,
	}}

	h := NewWebhookHandler(transporters, registry, pipeline, zap.NewNop())
	router := gin.New()
	router.POST("/webhooks/carriers/:carrier/:transporterId", h.Receive)

	return &webhookRig{
		router:       router,
		transporters: transporters,
		deliveries:   deliveries,
		events:       events,
		adapter:      adapter,
		transporter:  tr,
	}
}

func (rig *webhookRig) seedDelivery(t *testing.T, awb string) *delivery.Delivery {
	t.Helper()
	d, err := delivery.NewDelivery(rig.transporter.CompanyID, uuid.New(), rig.transporter.ID)
	require.NoError(t, err)
	require.NoError(t, d.AssignAWB(awb))
	require.NoError(t, rig.deliveries.Save(context.Background(), d))
	return d
}

func (rig *webhookRig) post(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"awb":"AWB-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, req)
	return w
}

type webhookBody struct {
	Success bool `json:"success"`
	Data    struct {
		Outcome        string `json:"outcome"`
		AWB            string `json:"awb"`
		IdempotencyKey string `json:"idempotency_key"`
	} `json:"data"`
	Error *dto.ErrorInfo `json:"error"`
}

func decodeWebhookBody(t *testing.T, w *httptest.ResponseRecorder) webhookBody {
	t.Helper()
	var body webhookBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestWebhookHandler_Receive(t *testing.T) {
	t.Run("applies a forward transition", func(t *testing.T) {
		rig := newWebhookRig(t)
		d := rig.seedDelivery(t, "AWB-1")
		rig.adapter.parseEv = &carrier.TrackingEvent{
			Carrier:           carrier.CodeShiprocket,
			AWB:               "AWB-1",
			ExternalEventID:   "evt-1",
			CarrierStatusCode: "PKP",
			OccurredAt:        time.Now().UTC(),
			RawPayload:        `{"awb":"AWB-1"}`,
		}

		w := rig.post("/webhooks/carriers/SHIPROCKET/" + rig.transporter.ID.String())

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeWebhookBody(t, w)
		assert.True(t, body.Success)
		assert.Equal(t, "APPLIED", body.Data.Outcome)
		assert.Equal(t, "AWB-1", body.Data.AWB)
		assert.Equal(t, "SHIPROCKET:AWB-1:evt-1", body.Data.IdempotencyKey)

		updated, err := rig.deliveries.FindByID(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusPickedUp, updated.Status)
	})

	t.Run("replay answers duplicate", func(t *testing.T) {
		rig := newWebhookRig(t)
		rig.seedDelivery(t, "AWB-1")
		rig.adapter.parseEv = &carrier.TrackingEvent{
			Carrier:           carrier.CodeShiprocket,
			AWB:               "AWB-1",
			ExternalEventID:   "evt-1",
			CarrierStatusCode: "PKP",
			OccurredAt:        time.Now().UTC(),
		}
		path := "/webhooks/carriers/SHIPROCKET/" + rig.transporter.ID.String()

		first := rig.post(path)
		second := rig.post(path)

		require.Equal(t, http.StatusOK, first.Code)
		require.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, "DUPLICATE", decodeWebhookBody(t, second).Data.Outcome)
		assert.Equal(t, []carrier.EventOutcome{carrier.OutcomeApplied, carrier.OutcomeDuplicate}, rig.events.outcomes())
	})

	t.Run("unknown awb defers the event", func(t *testing.T) {
		rig := newWebhookRig(t)
		rig.adapter.parseEv = &carrier.TrackingEvent{
			Carrier:           carrier.CodeShiprocket,
			AWB:               "AWB-MISSING",
			ExternalEventID:   "evt-9",
			CarrierStatusCode: "PKP",
			OccurredAt:        time.Now().UTC(),
		}

		w := rig.post("/webhooks/carriers/SHIPROCKET/" + rig.transporter.ID.String())

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "DEFERRED", decodeWebhookBody(t, w).Data.Outcome)
	})

	t.Run("invalid signature answers 401", func(t *testing.T) {
		rig := newWebhookRig(t)
		rig.adapter.parseErr = carrier.ErrSignatureInvalid

		w := rig.post("/webhooks/carriers/SHIPROCKET/" + rig.transporter.ID.String())

		require.Equal(t, http.StatusUnauthorized, w.Code)
		body := decodeWebhookBody(t, w)
		require.NotNil(t, body.Error)
		assert.Equal(t, dto.ErrCodeSignatureInvalid, body.Error.Code)
	})

	t.Run("unparseable payload answers 200 rejected", func(t *testing.T) {
		rig := newWebhookRig(t)
		rig.adapter.parseErr = carrier.ErrParseFailed

		w := rig.post("/webhooks/carriers/SHIPROCKET/" + rig.transporter.ID.String())

		// A non-2xx would make the carrier redeliver a payload that can
		// never parse; the rejection is recorded in the event log instead.
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeWebhookBody(t, w)
		assert.True(t, body.Success)
		assert.Equal(t, "REJECTED", body.Data.Outcome)
		assert.Equal(t, []carrier.EventOutcome{carrier.OutcomeRejected}, rig.events.outcomes())

		rig.events.mu.Lock()
		entry := rig.events.entries[0]
		rig.events.mu.Unlock()
		assert.Equal(t, carrier.CodeShiprocket, entry.Carrier)
		assert.Equal(t, rig.transporter.ID, entry.TransporterID)
		assert.Equal(t, `{"awb":"AWB-1"}`, entry.RawPayload)
		assert.Contains(t, entry.OutcomeDetail, "parse")
	})

	t.Run("unknown carrier code answers 400", func(t *testing.T) {
		rig := newWebhookRig(t)

		w := rig.post("/webhooks/carriers/BLUEDART/" + rig.transporter.ID.String())

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed transporter id answers 400", func(t *testing.T) {
		rig := newWebhookRig(t)

		w := rig.post("/webhooks/carriers/SHIPROCKET/not-a-uuid")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown transporter answers 404", func(t *testing.T) {
		rig := newWebhookRig(t)

		w := rig.post("/webhooks/carriers/SHIPROCKET/" + uuid.NewString())

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeWebhookBody(t, w).Error.Code)
	})

	t.Run("transporter bound to another carrier answers 404", func(t *testing.T) {
		rig := newWebhookRig(t)
		other, err := delivery.NewTransporter(uuid.New(), carrier.CodeDelhivery.String(), "Delhivery Main", delivery.Credentials{})
		require.NoError(t, err)
		require.NoError(t, rig.transporters.Save(context.Background(), other))

		w := rig.post("/webhooks/carriers/SHIPROCKET/" + other.ID.String())

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
