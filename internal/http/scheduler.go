package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jmehdipour/stocksync/internal/model"
)

// syncCompanyWeeklyHandler runs one dispatch. Partial and empty runs are 200;
// only a roster read failure is 500.
func syncCompanyWeeklyHandler(d Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		batchSize := 0
		if raw := strings.TrimSpace(c.QueryParam("batch_size")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "batch_size must be a positive integer"})
			}
			batchSize = n
		}

		report := d.Dispatch(c.Request().Context(), batchSize)
		if report.Status == model.DispatchError {
			return c.JSON(http.StatusInternalServerError, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
