package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jmehdipour/stocksync/internal/ingest"
	"github.com/jmehdipour/stocksync/internal/metrics"
)

// pubsubWebhookHandler acknowledges a delivery with 2xx. 400 tells the broker the
// message will never succeed; 500 asks for redelivery.
func pubsubWebhookHandler(in Ingester) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return webhookReply(c, http.StatusBadRequest, "unreadable body")
		}

		_, err = in.Handle(c.Request().Context(), body)
		switch {
		case err == nil:
			metrics.WebhookResponsesTotal.WithLabelValues(strconv.Itoa(http.StatusNoContent)).Inc()
			return c.NoContent(http.StatusNoContent)
		case errors.Is(err, ingest.ErrMalformedEnvelope), errors.Is(err, ingest.ErrUnknownCommand):
			return webhookReply(c, http.StatusBadRequest, err.Error())
		default:
			c.Logger().Errorf("pubsub webhook: %v", err)
			return webhookReply(c, http.StatusInternalServerError, err.Error())
		}
	}
}

func webhookReply(c echo.Context, code int, msg string) error {
	metrics.WebhookResponsesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	return c.JSON(code, map[string]string{"error": msg})
}
