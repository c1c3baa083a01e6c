package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"auction-core/internal/biddingerrors"
	"auction-core/utils"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message.
// Rejections and listing validation failures carry their own display message.
func MapErrorToHTTP(err error) (int, string) {
	if rej, ok := biddingerrors.AsRejection(err); ok {
		switch rej.Reason {
		case biddingerrors.ReasonUnauthenticated:
			return http.StatusUnauthorized, rej.Message
		case biddingerrors.ReasonMalformedAmount:
			return http.StatusBadRequest, rej.Message
		default:
			return http.StatusUnprocessableEntity, rej.Message
		}
	}
	var listingErr *biddingerrors.ListingError
	if errors.As(err, &listingErr) {
		return http.StatusBadRequest, listingErr.Message
	}

	switch {
	case errors.Is(err, biddingerrors.ErrItemNotFound):
		return http.StatusNotFound, "item not found"
	case errors.Is(err, biddingerrors.ErrForbidden):
		return http.StatusForbidden, "only the listing owner can do this"
	case errors.Is(err, biddingerrors.ErrDuplicateTitle):
		return http.StatusConflict, "a listing with this title already exists"
	case errors.Is(err, biddingerrors.ErrInvalidBid), errors.Is(err, biddingerrors.ErrInvalidListing):
		return http.StatusBadRequest, "invalid request details"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusOK, "no bids found for item"
	case errors.Is(err, biddingerrors.ErrUserNoBids):
		return http.StatusOK, "no items found for user"
	case errors.Is(err, biddingerrors.ErrInfrastructure):
		return http.StatusServiceUnavailable, "service temporarily unavailable, please retry"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes err using MapErrorToHTTP. Rejections also expose their reason code.
func RespondError(c *gin.Context, err error) int {
	status, message := MapErrorToHTTP(err)
	if rej, ok := biddingerrors.AsRejection(err); ok {
		utils.JSONRejection(c, status, string(rej.Reason), message)
		return status
	}
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
	return status
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
