package api

import (
	"context"
	"errors"
	"net/http"

	"hl-basis-backtest/internal/align"
	"hl-basis-backtest/internal/equity"
	"hl-basis-backtest/internal/funding"
	"hl-basis-backtest/internal/series"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, code, message string, details map[string]any) {
	c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Details: details}})
}

// writeRunError maps domain errors onto HTTP statuses.
func writeRunError(c *gin.Context, err error) {
	var (
		validation   *series.ValidationError
		gap          *align.DataGapError
		overlap      *align.EmptyOverlapError
		insufficient *funding.InsufficientDataError
		chartErr     *equity.ChartError
	)
	switch {
	case errors.As(err, &validation):
		details := map[string]any{"field": validation.Field}
		if !validation.Time.IsZero() {
			details["time"] = validation.Time
		}
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), details)
	case errors.As(err, &gap):
		writeError(c, http.StatusUnprocessableEntity, "DATA_GAP", err.Error(), map[string]any{"time": gap.Time})
	case errors.As(err, &overlap):
		writeError(c, http.StatusUnprocessableEntity, "EMPTY_OVERLAP", err.Error(), nil)
	case errors.As(err, &insufficient):
		writeError(c, http.StatusUnprocessableEntity, "INSUFFICIENT_DATA", err.Error(), map[string]any{
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.As(err, &chartErr):
		writeError(c, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error(), map[string]any{"ticker": chartErr.Ticker})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", err.Error(), nil)
	default:
		writeError(c, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error(), nil)
	}
}
