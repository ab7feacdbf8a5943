package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
	"github.com/oms/backend/internal/domain/marketplace"
	"github.com/oms/backend/internal/interfaces/http/dto"
)

// sentinelCode maps a domain sentinel error onto an API error code.
// Errors outside the table fall back to ERR_INTERNAL.
func sentinelCode(err error) (string, bool) {
	switch {
	case errors.Is(err, delivery.ErrDeliveryNotFound),
		errors.Is(err, delivery.ErrTransporterNotFound),
		errors.Is(err, carrier.ErrEventNotFound),
		errors.Is(err, marketplace.ErrConnectionNotFound),
		errors.Is(err, marketplace.ErrJobNotFound),
		errors.Is(err, marketplace.ErrSkuMappingNotFound),
		errors.Is(err, marketplace.ErrRecordNotFound):
		return dto.ErrCodeNotFound, true

	case errors.Is(err, delivery.ErrInvalidTransition):
		return dto.ErrCodeInvalidTransition, true

	case errors.Is(err, marketplace.ErrJobAlreadyRunning):
		return dto.ErrCodeJobAlreadyRunning, true

	case errors.Is(err, carrier.ErrSignatureInvalid):
		return dto.ErrCodeSignatureInvalid, true

	case errors.Is(err, marketplace.ErrJobNotPending),
		errors.Is(err, marketplace.ErrJobNotRetryable),
		errors.Is(err, delivery.ErrAWBAlreadyAssigned),
		errors.Is(err, delivery.ErrCancelRefused):
		return dto.ErrCodeConflict, true

	case errors.Is(err, delivery.ErrTransporterDisabled),
		errors.Is(err, delivery.ErrCarrierNotCapable),
		errors.Is(err, marketplace.ErrConnectionDisabled):
		return dto.ErrCodeUnprocessable, true

	case errors.Is(err, delivery.ErrEmptyAWB),
		errors.Is(err, delivery.ErrInvalidOrderID),
		errors.Is(err, delivery.ErrInvalidTransporterID),
		errors.Is(err, delivery.ErrInvalidCarrierCode),
		errors.Is(err, carrier.ErrCarrierNotSupported),
		errors.Is(err, carrier.ErrParseFailed),
		errors.Is(err, marketplace.ErrInvalidMarketplaceCode),
		errors.Is(err, marketplace.ErrInvalidSkuMapping),
		errors.Is(err, marketplace.ErrMarketplaceNotSupported):
		return dto.ErrCodeBadRequest, true
	}
	return "", false
}

// RespondError maps a service-layer error to the API error envelope.
// Carrier API failures surface as 502s so callers can distinguish
// upstream outages from local faults.
func (h *BaseHandler) RespondError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	if code, ok := sentinelCode(err); ok {
		h.ErrorWithCode(c, code, err.Error())
		return
	}

	var carrierErr *carrier.Error
	if errors.As(err, &carrierErr) {
		switch carrierErr.Kind {
		case carrier.ErrorKindValidation:
			h.ErrorWithCode(c, dto.ErrCodeBadRequest, carrierErr.Error())
		default:
			h.ErrorWithCode(c, dto.ErrCodeCarrierUnavailable, carrierErr.Error())
		}
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}
