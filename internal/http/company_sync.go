package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/jmehdipour/stocksync/internal/service/companysync"
)

// syncCompanyHandler refreshes a single symbol on demand.
func syncCompanyHandler(svc CompanySyncer) echo.HandlerFunc {
	return func(c echo.Context) error {
		symbol := strings.TrimSpace(c.Param("symbol"))

		company, err := svc.UpsertCompany(c.Request().Context(), symbol)
		if err != nil {
			if errors.Is(err, companysync.ErrEmptySymbol) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "symbol required"})
			}

			log.Errorf("company sync %s failed: %v", symbol, err)

			return c.JSON(http.StatusBadGateway, map[string]string{"error": "sync failed"})
		}

		if company == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "company not found"})
		}

		return c.JSON(http.StatusOK, company)
	}
}
