// Package customer exposes the unified customer and BI snapshot endpoints.
package customer

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/repositories/snapshot"
	"github.com/Ramsey-B/sage/internal/repositories/unified"
)

const defaultPageSize = 50
const maxPageSize = 500

// Register registers customer routes
func Register(g *echo.Group) {
	g.GET("", ListCustomers)
	g.GET("/:id", GetCustomer)
	g.GET("/:id/snapshot", GetCustomerSnapshot)
}

func paging(c echo.Context) (int, int, error) {
	limit := defaultPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxPageSize {
			return 0, 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "limit must be between 1 and %d", maxPageSize)
		}
		limit = parsed
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, httperror.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		offset = parsed
	}
	return limit, offset, nil
}

// ListCustomers lists unified customers, newest first
func ListCustomers(c echo.Context) error {
	ctx := c.Request().Context()

	limit, offset, err := paging(c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*unified.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	customers, err := repo.List(ctx, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customers)
}

// GetCustomer returns one unified customer by billing customer id
func GetCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")
	if id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "customer id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*unified.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	customer, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customer)
}

// GetCustomerSnapshot returns the flat BI row for one customer
func GetCustomerSnapshot(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")
	if id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "customer id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*snapshot.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	snap, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}
