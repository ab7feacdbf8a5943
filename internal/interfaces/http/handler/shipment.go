package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/application/tracking"
	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
)

// ShipmentHandler handles shipment booking and transporter account endpoints
type ShipmentHandler struct {
	BaseHandler
	service *tracking.ShipmentService
}

// NewShipmentHandler creates a new ShipmentHandler
func NewShipmentHandler(service *tracking.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{service: service}
}

// CreateShipmentRequest represents a shipment booking request
type CreateShipmentRequest struct {
	OrderID        string  `json:"order_id" binding:"required,uuid"`
	TransporterID  string  `json:"transporter_id" binding:"required,uuid"`
	OrderReference string  `json:"order_reference" binding:"required,min=1,max=100"`
	PickupPincode  string  `json:"pickup_pincode" binding:"required,min=4,max=10"`
	DropPincode    string  `json:"drop_pincode" binding:"required,min=4,max=10"`
	ConsigneeName  string  `json:"consignee_name" binding:"required,min=1,max=200"`
	ConsigneePhone string  `json:"consignee_phone" binding:"required,min=6,max=20"`
	Address        string  `json:"address" binding:"required,min=1,max=500"`
	WeightGrams    int     `json:"weight_grams" binding:"required,gt=0"`
	CODAmount      float64 `json:"cod_amount" binding:"gte=0"`
	IsCOD          bool    `json:"is_cod"`
}

// RateQuoteRequest represents a rate quote query
type RateQuoteRequest struct {
	TransporterID string `json:"transporter_id" binding:"required,uuid"`
	PickupPincode string `json:"pickup_pincode" binding:"required,min=4,max=10"`
	DropPincode   string `json:"drop_pincode" binding:"required,min=4,max=10"`
	WeightGrams   int    `json:"weight_grams" binding:"required,gt=0"`
	IsCOD         bool   `json:"is_cod"`
}

// RateOptionResponse is one serviceable courier/rate combination
type RateOptionResponse struct {
	CourierName   string  `json:"courier_name"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	EstimatedDays int     `json:"estimated_days"`
}

// ServiceabilityResponse reports pincode serviceability
type ServiceabilityResponse struct {
	Pincode     string `json:"pincode"`
	Serviceable bool   `json:"serviceable"`
}

// RegisterTransporterRequest represents a carrier account registration
type RegisterTransporterRequest struct {
	CarrierCode   string `json:"carrier_code" binding:"required" example:"SHIPROCKET"`
	Name          string `json:"name" binding:"required,min=1,max=200"`
	APIKey        string `json:"api_key" binding:"required"`
	APISecret     string `json:"api_secret"`
	BaseURL       string `json:"base_url"`
	WebhookSecret string `json:"webhook_secret"`
}

// TransporterResponse represents a transporter account in API responses
type TransporterResponse struct {
	ID           string     `json:"id"`
	CompanyID    string     `json:"company_id"`
	CarrierCode  string     `json:"carrier_code"`
	Name         string     `json:"name"`
	Capabilities []string   `json:"capabilities"`
	Enabled      bool       `json:"enabled"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toTransporterResponse(t *delivery.Transporter) TransporterResponse {
	caps := make([]string, 0, len(t.Capabilities))
	for _, cap := range t.Capabilities {
		caps = append(caps, string(cap))
	}
	return TransporterResponse{
		ID:           t.ID.String(),
		CompanyID:    t.CompanyID.String(),
		CarrierCode:  t.CarrierCode,
		Name:         t.Name,
		Capabilities: caps,
		Enabled:      t.Enabled,
		LastPolledAt: t.LastPolledAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// Create godoc
// @Summary      Book a shipment
// @Description  Books a shipment with the carrier and registers the delivery under the returned AWB
// @Tags         shipments
// @Accept       json
// @Produce      json
// @Param        X-Company-ID header string false "Company ID"
// @Param        request body CreateShipmentRequest true "Shipment details"
// @Success      201 {object} dto.Response{data=DeliveryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /shipments [post]
func (h *ShipmentHandler) Create(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.BadRequest(c, "Invalid company ID")
		return
	}

	var req CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}
	transporterID, err := uuid.Parse(req.TransporterID)
	if err != nil {
		h.BadRequest(c, "Invalid transporter ID format")
		return
	}

	shipReq := carrier.ShipmentRequest{
		OrderReference: req.OrderReference,
		PickupPincode:  req.PickupPincode,
		DropPincode:    req.DropPincode,
		ConsigneeName:  req.ConsigneeName,
		ConsigneePhone: req.ConsigneePhone,
		Address:        req.Address,
		WeightGrams:    req.WeightGrams,
		CODAmount:      decimal.NewFromFloat(req.CODAmount),
		IsCOD:          req.IsCOD,
	}

	d, err := h.service.CreateShipment(c.Request.Context(), companyID, orderID, transporterID, shipReq)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Created(c, toDeliveryResponse(d))
}

// Cancel godoc
// @Summary      Cancel a shipment
// @Description  Requests cancellation with the carrier and applies the CANCELLED transition
// @Tags         shipments
// @Produce      json
// @Param        id path string true "Delivery ID" format(uuid)
// @Success      200 {object} dto.Response{data=DeliveryResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /shipments/{id}/cancel [post]
func (h *ShipmentHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid delivery ID format")
		return
	}

	d, err := h.service.CancelShipment(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, toDeliveryResponse(d))
}

// RateQuote godoc
// @Summary      Quote shipping rates
// @Description  Returns serviceable courier/rate options for a prospective shipment
// @Tags         shipments
// @Accept       json
// @Produce      json
// @Param        request body RateQuoteRequest true "Rate query"
// @Success      200 {object} dto.Response{data=[]RateOptionResponse}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /shipments/rates [post]
func (h *ShipmentHandler) RateQuote(c *gin.Context) {
	var req RateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	transporterID, err := uuid.Parse(req.TransporterID)
	if err != nil {
		h.BadRequest(c, "Invalid transporter ID format")
		return
	}

	options, err := h.service.RateQuote(c.Request.Context(), transporterID, carrier.RateRequest{
		PickupPincode: req.PickupPincode,
		DropPincode:   req.DropPincode,
		WeightGrams:   req.WeightGrams,
		IsCOD:         req.IsCOD,
	})
	if err != nil {
		h.RespondError(c, err)
		return
	}

	resp := make([]RateOptionResponse, 0, len(options))
	for _, opt := range options {
		amount, _ := opt.Amount.Float64()
		resp = append(resp, RateOptionResponse{
			CourierName:   opt.CourierName,
			Amount:        amount,
			Currency:      opt.Currency,
			EstimatedDays: opt.EstimatedDays,
		})
	}

	h.Success(c, resp)
}

// Serviceability godoc
// @Summary      Check pincode serviceability
// @Description  Reports whether the carrier delivers to a pincode
// @Tags         shipments
// @Produce      json
// @Param        id path string true "Transporter ID" format(uuid)
// @Param        pincode query string true "Destination pincode"
// @Success      200 {object} dto.Response{data=ServiceabilityResponse}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /transporters/{id}/serviceability [get]
func (h *ShipmentHandler) Serviceability(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transporter ID format")
		return
	}
	pincode := c.Query("pincode")
	if pincode == "" {
		h.BadRequest(c, "pincode is required")
		return
	}

	serviceable, err := h.service.CheckServiceability(c.Request.Context(), id, pincode)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, ServiceabilityResponse{Pincode: pincode, Serviceable: serviceable})
}

// RegisterTransporter godoc
// @Summary      Register a transporter account
// @Description  Creates a carrier account configuration for a company
// @Tags         transporters
// @Accept       json
// @Produce      json
// @Param        X-Company-ID header string false "Company ID"
// @Param        request body RegisterTransporterRequest true "Account details"
// @Success      201 {object} dto.Response{data=TransporterResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /transporters [post]
func (h *ShipmentHandler) RegisterTransporter(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.BadRequest(c, "Invalid company ID")
		return
	}

	var req RegisterTransporterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	t, err := h.service.RegisterTransporter(
		c.Request.Context(),
		companyID,
		req.CarrierCode,
		req.Name,
		delivery.Credentials{
			APIKey:    req.APIKey,
			APISecret: req.APISecret,
			BaseURL:   req.BaseURL,
		},
		req.WebhookSecret,
	)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Created(c, toTransporterResponse(t))
}

// ListTransporters godoc
// @Summary      List transporter accounts
// @Description  Returns the company's enabled transporter accounts
// @Tags         transporters
// @Produce      json
// @Param        X-Company-ID header string false "Company ID"
// @Success      200 {object} dto.Response{data=[]TransporterResponse}
// @Router       /transporters [get]
func (h *ShipmentHandler) ListTransporters(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.BadRequest(c, "Invalid company ID")
		return
	}

	transporters, err := h.service.ListTransporters(c.Request.Context(), companyID)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	resp := make([]TransporterResponse, 0, len(transporters))
	for i := range transporters {
		resp = append(resp, toTransporterResponse(&transporters[i]))
	}

	h.Success(c, resp)
}

// GetTransporter godoc
// @Summary      Get a transporter account
// @Description  Returns one transporter account configuration
// @Tags         transporters
// @Produce      json
// @Param        id path string true "Transporter ID" format(uuid)
// @Success      200 {object} dto.Response{data=TransporterResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /transporters/{id} [get]
func (h *ShipmentHandler) GetTransporter(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transporter ID format")
		return
	}

	t, err := h.service.GetTransporter(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, toTransporterResponse(t))
}
