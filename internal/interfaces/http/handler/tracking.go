package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oms/backend/internal/application/tracking"
	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
	"github.com/oms/backend/internal/interfaces/http/dto"
)

// TrackingHandler handles delivery tracking API endpoints
type TrackingHandler struct {
	BaseHandler
	service *tracking.TrackingService
}

// NewTrackingHandler creates a new TrackingHandler
func NewTrackingHandler(service *tracking.TrackingService) *TrackingHandler {
	return &TrackingHandler{service: service}
}

// StatusHistoryResponse represents one applied transition in API responses
type StatusHistoryResponse struct {
	FromStatus        string    `json:"from_status"`
	ToStatus          string    `json:"to_status"`
	Source            string    `json:"source"`
	CarrierStatusCode string    `json:"carrier_status_code,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// DeliveryResponse represents a delivery in API responses
type DeliveryResponse struct {
	ID            string                  `json:"id"`
	CompanyID     string                  `json:"company_id"`
	OrderID       string                  `json:"order_id"`
	TransporterID string                  `json:"transporter_id"`
	AWB           string                  `json:"awb,omitempty"`
	Status        string                  `json:"status"`
	History       []StatusHistoryResponse `json:"history,omitempty"`
	LastSyncedAt  *time.Time              `json:"last_synced_at,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func toDeliveryResponse(d *delivery.Delivery) DeliveryResponse {
	resp := DeliveryResponse{
		ID:            d.ID.String(),
		CompanyID:     d.CompanyID.String(),
		OrderID:       d.OrderID.String(),
		TransporterID: d.TransporterID.String(),
		AWB:           d.AWB,
		Status:        d.Status.String(),
		LastSyncedAt:  d.LastSyncedAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, e := range d.History {
		resp.History = append(resp.History, StatusHistoryResponse{
			FromStatus:        e.FromStatus.String(),
			ToStatus:          e.ToStatus.String(),
			Source:            string(e.Source),
			CarrierStatusCode: e.CarrierStatusCode,
			OccurredAt:        e.OccurredAt,
			RecordedAt:        e.RecordedAt,
		})
	}
	return resp
}

// WebhookEventResponse represents a webhook event log entry in API responses
type WebhookEventResponse struct {
	ID                string     `json:"id"`
	Carrier           string     `json:"carrier"`
	TransporterID     string     `json:"transporter_id"`
	AWB               string     `json:"awb,omitempty"`
	IdempotencyKey    string     `json:"idempotency_key"`
	CarrierStatusCode string     `json:"carrier_status_code,omitempty"`
	Outcome           string     `json:"outcome"`
	OutcomeDetail     string     `json:"outcome_detail,omitempty"`
	ReceivedAt        time.Time  `json:"received_at"`
	NextRetryAt       *time.Time `json:"next_retry_at,omitempty"`
}

func toWebhookEventResponse(ev *carrier.WebhookEvent) WebhookEventResponse {
	return WebhookEventResponse{
		ID:                ev.ID.String(),
		Carrier:           ev.Carrier.String(),
		TransporterID:     ev.TransporterID.String(),
		AWB:               ev.AWB,
		IdempotencyKey:    ev.IdempotencyKey,
		CarrierStatusCode: ev.CarrierStatusCode,
		Outcome:           string(ev.Outcome),
		OutcomeDetail:     ev.OutcomeDetail,
		ReceivedAt:        ev.ReceivedAt,
		NextRetryAt:       ev.NextRetryAt,
	}
}

// OverrideStatusRequest represents a manual status override request
type OverrideStatusRequest struct {
	Status string `json:"status" binding:"required" example:"DELIVERED"`
}

// ListEventsRequest represents webhook event log query parameters
type ListEventsRequest struct {
	Carrier       string `form:"carrier"`
	TransporterID string `form:"transporter_id"`
	AWB           string `form:"awb"`
	Outcome       string `form:"outcome"`
	Since         string `form:"since"`
	Until         string `form:"until"`
	SortBy        string `form:"sort_by"`
	SortDir       string `form:"sort_dir"`
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
}

// GetDelivery godoc
// @Summary      Get a delivery
// @Description  Retrieve a delivery with its status history
// @Tags         tracking
// @Produce      json
// @Param        id path string true "Delivery ID" format(uuid)
// @Success      200 {object} dto.Response{data=DeliveryResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tracking/deliveries/{id} [get]
func (h *TrackingHandler) GetDelivery(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid delivery ID format")
		return
	}

	d, err := h.service.GetDelivery(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, toDeliveryResponse(d))
}

// GetDeliveryByAWB godoc
// @Summary      Get a delivery by AWB
// @Description  Retrieve a delivery by transporter and tracking number
// @Tags         tracking
// @Produce      json
// @Param        transporter_id query string true "Transporter ID" format(uuid)
// @Param        awb query string true "Tracking number"
// @Success      200 {object} dto.Response{data=DeliveryResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tracking/deliveries/by-awb [get]
func (h *TrackingHandler) GetDeliveryByAWB(c *gin.Context) {
	transporterID, err := uuid.Parse(c.Query("transporter_id"))
	if err != nil {
		h.BadRequest(c, "Invalid transporter ID format")
		return
	}
	awb := c.Query("awb")
	if awb == "" {
		h.BadRequest(c, "awb is required")
		return
	}

	d, err := h.service.FindByAWB(c.Request.Context(), transporterID, awb)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, toDeliveryResponse(d))
}

// Refresh godoc
// @Summary      Refresh a delivery's tracking
// @Description  Pulls the latest carrier events for one delivery on demand
// @Tags         tracking
// @Produce      json
// @Param        id path string true "Delivery ID" format(uuid)
// @Success      200 {object} dto.Response{data=DeliveryResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tracking/deliveries/{id}/refresh [post]
func (h *TrackingHandler) Refresh(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid delivery ID format")
		return
	}

	d, err := h.service.Refresh(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, toDeliveryResponse(d))
}

// Override godoc
// @Summary      Override a delivery's status
// @Description  Applies an operator-forced status transition outside the normal graph
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Param        id path string true "Delivery ID" format(uuid)
// @Param        request body OverrideStatusRequest true "Target status"
// @Success      200 {object} dto.Response{data=DeliveryResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tracking/deliveries/{id}/override [post]
func (h *TrackingHandler) Override(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid delivery ID format")
		return
	}

	var req OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	target := delivery.DeliveryStatus(req.Status)
	if !target.IsValid() {
		h.ErrorWithCode(c, dto.ErrCodeUnknownStatusCode, "Unknown delivery status: "+req.Status)
		return
	}

	d, err := h.service.Override(c.Request.Context(), id, target)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, toDeliveryResponse(d))
}

// Poll godoc
// @Summary      Poll a transporter's open deliveries
// @Description  Runs one bulk tracking pass over the transporter's open deliveries
// @Tags         tracking
// @Produce      json
// @Param        id path string true "Transporter ID" format(uuid)
// @Success      200 {object} dto.Response{data=tracking.PollReport}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tracking/transporters/{id}/poll [post]
func (h *TrackingHandler) Poll(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transporter ID format")
		return
	}

	batchSize, _ := strconv.Atoi(c.DefaultQuery("batch_size", "0"))

	report, err := h.service.Poll(c.Request.Context(), id, batchSize)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, report)
}

// ListEvents godoc
// @Summary      List webhook event log entries
// @Description  Queries the webhook event audit log, newest first
// @Tags         tracking
// @Produce      json
// @Param        carrier query string false "Carrier code"
// @Param        transporter_id query string false "Transporter ID" format(uuid)
// @Param        awb query string false "Tracking number"
// @Param        outcome query string false "Event outcome"
// @Param        since query string false "RFC3339 lower bound on received_at"
// @Param        until query string false "RFC3339 upper bound on received_at"
// @Success      200 {object} dto.Response{data=[]WebhookEventResponse}
// @Router       /tracking/events [get]
func (h *TrackingHandler) ListEvents(c *gin.Context) {
	var req ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter, err := buildEventFilter(req)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	events, total, err := h.service.ListEvents(c.Request.Context(), filter)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	resp := make([]WebhookEventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, toWebhookEventResponse(&events[i]))
	}

	h.SuccessWithMeta(c, resp, total, filter.Page, filter.PageSize)
}

func buildEventFilter(req ListEventsRequest) (carrier.EventFilter, error) {
	filter := carrier.EventFilter{
		AWB:      req.AWB,
		SortBy:   req.SortBy,
		SortDir:  req.SortDir,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Carrier != "" {
		code := carrier.Code(req.Carrier)
		filter.Carrier = &code
	}
	if req.TransporterID != "" {
		id, err := uuid.Parse(req.TransporterID)
		if err != nil {
			return filter, err
		}
		filter.TransporterID = &id
	}
	if req.Outcome != "" {
		outcome := carrier.EventOutcome(req.Outcome)
		filter.Outcome = &outcome
	}
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return filter, err
		}
		filter.Since = &t
	}
	if req.Until != "" {
		t, err := time.Parse(time.RFC3339, req.Until)
		if err != nil {
			return filter, err
		}
		filter.Until = &t
	}
	return filter, nil
}
