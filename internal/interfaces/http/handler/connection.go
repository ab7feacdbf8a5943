package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/oms/backend/internal/application/sync"
	"github.com/oms/backend/internal/domain/marketplace"
)

// ConnectionHandler handles marketplace connection and SKU mapping endpoints
type ConnectionHandler struct {
	BaseHandler
	service *syncapp.ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(service *syncapp.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{service: service}
}

// CreateConnectionRequest represents a marketplace connection registration
type CreateConnectionRequest struct {
	Code        string `json:"code" binding:"required" example:"SHOPIFY"`
	Name        string `json:"name" binding:"required,min=1,max=200"`
	ShopDomain  string `json:"shop_domain"`
	AccessToken string `json:"access_token" binding:"required"`
	BaseURL     string `json:"base_url"`
}

// ConnectionResponse represents a marketplace connection in API responses
type ConnectionResponse struct {
	ID           string               `json:"id"`
	CompanyID    string               `json:"company_id"`
	Code         string               `json:"code"`
	Name         string               `json:"name"`
	Status       string               `json:"status"`
	StatusError  string               `json:"status_error,omitempty"`
	Cursors      map[string]string    `json:"cursors,omitempty"`
	LastSyncedAt map[string]time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func toConnectionResponse(conn *marketplace.Connection) ConnectionResponse {
	resp := ConnectionResponse{
		ID:          conn.ID.String(),
		CompanyID:   conn.CompanyID.String(),
		Code:        conn.Code.String(),
		Name:        conn.Name,
		Status:      string(conn.Status),
		StatusError: conn.StatusError,
		CreatedAt:   conn.CreatedAt,
		UpdatedAt:   conn.UpdatedAt,
	}
	if len(conn.Cursors) > 0 {
		resp.Cursors = make(map[string]string, len(conn.Cursors))
		for jobType, cursor := range conn.Cursors {
			resp.Cursors[string(jobType)] = cursor
		}
	}
	if len(conn.LastSyncedAt) > 0 {
		resp.LastSyncedAt = make(map[string]time.Time, len(conn.LastSyncedAt))
		for jobType, at := range conn.LastSyncedAt {
			resp.LastSyncedAt[string(jobType)] = at
		}
	}
	return resp
}

// UpsertSkuMappingRequest represents a SKU mapping upsert
type UpsertSkuMappingRequest struct {
	ExternalSKU string `json:"external_sku" binding:"required,min=1,max=100"`
	LocalSKU    string `json:"local_sku" binding:"required,min=1,max=100"`
}

// SkuMappingResponse represents a SKU mapping in API responses
type SkuMappingResponse struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	ExternalSKU  string    `json:"external_sku"`
	LocalSKU     string    `json:"local_sku"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toSkuMappingResponse(m *marketplace.SkuMapping) SkuMappingResponse {
	return SkuMappingResponse{
		ID:           m.ID.String(),
		ConnectionID: m.ConnectionID.String(),
		ExternalSKU:  m.ExternalSKU,
		LocalSKU:     m.LocalSKU,
		Enabled:      m.Enabled,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// Create godoc
// @Summary      Register a marketplace connection
// @Description  Creates an active marketplace account link for a company
// @Tags         connections
// @Accept       json
// @Produce      json
// @Param        X-Company-ID header string false "Company ID"
// @Param        request body CreateConnectionRequest true "Connection details"
// @Success      201 {object} dto.Response{data=ConnectionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sync/connections [post]
func (h *ConnectionHandler) Create(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.BadRequest(c, "Invalid company ID")
		return
	}

	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conn, err := h.service.CreateConnection(
		c.Request.Context(),
		companyID,
		marketplace.Code(req.Code),
		req.Name,
		marketplace.Credentials{
			ShopDomain:  req.ShopDomain,
			AccessToken: req.AccessToken,
			BaseURL:     req.BaseURL,
		},
	)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Created(c, toConnectionResponse(conn))
}

// List godoc
// @Summary      List marketplace connections
// @Description  Returns the company's marketplace connections
// @Tags         connections
// @Produce      json
// @Param        X-Company-ID header string false "Company ID"
// @Success      200 {object} dto.Response{data=[]ConnectionResponse}
// @Router       /sync/connections [get]
func (h *ConnectionHandler) List(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.BadRequest(c, "Invalid company ID")
		return
	}

	connections, err := h.service.ListConnections(c.Request.Context(), companyID)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	resp := make([]ConnectionResponse, 0, len(connections))
	for _, conn := range connections {
		resp = append(resp, toConnectionResponse(conn))
	}

	h.Success(c, resp)
}

// Get godoc
// @Summary      Get a marketplace connection
// @Description  Returns one marketplace connection with its sync cursors
// @Tags         connections
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Success      200 {object} dto.Response{data=ConnectionResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sync/connections/{id} [get]
func (h *ConnectionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	conn, err := h.service.GetConnection(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, toConnectionResponse(conn))
}

// Disable godoc
// @Summary      Disable a marketplace connection
// @Description  Takes a connection out of sync rotation
// @Tags         connections
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Success      204
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sync/connections/{id} [delete]
func (h *ConnectionHandler) Disable(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	if err := h.service.DisableConnection(c.Request.Context(), id); err != nil {
		h.RespondError(c, err)
		return
	}

	h.NoContent(c)
}

// UpsertSkuMapping godoc
// @Summary      Create or rebind a SKU mapping
// @Description  Binds a marketplace listing SKU to a local catalog SKU
// @Tags         connections
// @Accept       json
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        request body UpsertSkuMappingRequest true "SKU binding"
// @Success      200 {object} dto.Response{data=SkuMappingResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sync/connections/{id}/sku-mappings [put]
func (h *ConnectionHandler) UpsertSkuMapping(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	var req UpsertSkuMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	mapping, err := h.service.UpsertSkuMapping(c.Request.Context(), connectionID, req.ExternalSKU, req.LocalSKU)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	h.Success(c, toSkuMappingResponse(mapping))
}

// ListSkuMappings godoc
// @Summary      List SKU mappings
// @Description  Returns a connection's SKU bindings
// @Tags         connections
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]SkuMappingResponse}
// @Router       /sync/connections/{id}/sku-mappings [get]
func (h *ConnectionHandler) ListSkuMappings(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	mappings, err := h.service.ListSkuMappings(c.Request.Context(), connectionID)
	if err != nil {
		h.RespondError(c, err)
		return
	}

	resp := make([]SkuMappingResponse, 0, len(mappings))
	for _, m := range mappings {
		resp = append(resp, toSkuMappingResponse(m))
	}

	h.Success(c, resp)
}

// DisableSkuMapping godoc
// @Summary      Disable a SKU mapping
// @Description  Stops resolving the external SKU without deleting the binding
// @Tags         connections
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        sku path string true "External SKU"
// @Success      204
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sync/connections/{id}/sku-mappings/{sku} [delete]
func (h *ConnectionHandler) DisableSkuMapping(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}
	sku := c.Param("sku")
	if sku == "" {
		h.BadRequest(c, "sku is required")
		return
	}

	if err := h.service.DisableSkuMapping(c.Request.Context(), connectionID, sku); err != nil {
		h.RespondError(c, err)
		return
	}

	h.NoContent(c)
}
