package httpapi

import (
	"errors"
	"net/http"

	"intent-exchange-service/internal/domain/shared"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
}

// mapErrorToStatus translates domain errors to HTTP status codes
func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, shared.ErrQueryEmpty),
		errors.Is(err, shared.ErrQueryTooLong),
		errors.Is(err, shared.ErrBidPriceInvalid),
		errors.Is(err, shared.ErrInvalidDwellTime),
		errors.Is(err, shared.ErrInvalidKeyword),
		errors.Is(err, shared.ErrInvalidBudget),
		errors.Is(err, shared.ErrInvalidRequest):
		return http.StatusBadRequest

	case errors.Is(err, shared.ErrAuctionNotFound),
		errors.Is(err, shared.ErrBidNotFound),
		errors.Is(err, shared.ErrTransactionNotFound),
		errors.Is(err, shared.ErrAdvertiserNotFound):
		return http.StatusNotFound

	case errors.Is(err, shared.ErrAuctionExpired),
		errors.Is(err, shared.ErrAuctionAlreadyFinalized),
		errors.Is(err, shared.ErrAuctionNotFinalized),
		errors.Is(err, shared.ErrClickAlreadyRecorded),
		errors.Is(err, shared.ErrClickNotRegistered),
		errors.Is(err, shared.ErrAlreadySettled),
		errors.Is(err, shared.ErrBudgetExhausted):
		return http.StatusConflict

	case errors.Is(err, shared.ErrQuotaExceeded):
		return http.StatusTooManyRequests

	case errors.Is(err, shared.ErrScorerUnavailable):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(mapErrorToStatus(err), errorResponse{Error: err.Error()})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: message})
}
