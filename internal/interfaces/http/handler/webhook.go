package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/application/tracking"
	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
)

// WebhookHandler receives inbound carrier status webhooks.
// Carriers retry on non-2xx, so authenticated events answer 200 regardless
// of pipeline outcome, malformed payloads included; only authenticity
// failures answer 401.
type WebhookHandler struct {
	BaseHandler
	transporters delivery.TransporterRepository
	carriers     carrier.Registry
	pipeline     *tracking.StatusPipeline
	logger       *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(
	transporters delivery.TransporterRepository,
	carriers carrier.Registry,
	pipeline *tracking.StatusPipeline,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		transporters: transporters,
		carriers:     carriers,
		pipeline:     pipeline,
		logger:       logger,
	}
}

// WebhookResponse reports how the pipeline disposed of the event
type WebhookResponse struct {
	Outcome        string `json:"outcome"`
	AWB            string `json:"awb,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Receive godoc
// @Summary      Receive a carrier status webhook
// @Description  Verifies, normalizes and applies an inbound carrier event
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        carrier path string true "Carrier code" example:"SHIPROCKET"
// @Param        transporterId path string true "Transporter ID" format(uuid)
// @Success      200 {object} dto.Response{data=WebhookResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /webhooks/carriers/{carrier}/{transporterId} [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	carrierCode := carrier.Code(c.Param("carrier"))
	if !carrierCode.IsValid() {
		h.BadRequest(c, "Unknown carrier code")
		return
	}

	transporterID, err := uuid.Parse(c.Param("transporterId"))
	if err != nil {
		h.BadRequest(c, "Invalid transporter ID format")
		return
	}

	t, err := h.transporters.FindByID(c.Request.Context(), transporterID)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	if t.CarrierCode != carrierCode.String() {
		h.NotFound(c, "Transporter is not registered for this carrier")
		return
	}

	adapter, err := h.carriers.Resolve(carrierCode)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	ev, err := adapter.ParseWebhook(payload, c.Request.Header, t.WebhookSecret)
	if err != nil {
		if errors.Is(err, carrier.ErrSignatureInvalid) {
			h.logger.Warn("Webhook signature verification failed",
				zap.String("carrier", carrierCode.String()),
				zap.String("transporter_id", transporterID.String()),
			)
			h.RespondError(c, err)
			return
		}
		// An authenticated but malformed payload is rejected here and now;
		// answering non-2xx would only make the carrier redeliver something
		// that can never parse.
		if logErr := h.pipeline.RecordMalformed(c.Request.Context(), carrierCode, t.ID, string(payload), err.Error()); logErr != nil {
			h.RespondError(c, logErr)
			return
		}
		h.Success(c, WebhookResponse{Outcome: string(carrier.OutcomeRejected)})
		return
	}
	ev.TransporterID = t.ID

	outcome, err := h.pipeline.Process(c.Request.Context(), ev, delivery.SourceWebhook)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, WebhookResponse{
		Outcome:        string(outcome),
		AWB:            ev.AWB,
		IdempotencyKey: ev.IdempotencyKey(),
	})
}
