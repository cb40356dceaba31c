// Package sync exposes the sync trigger and history endpoints.
package sync

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/sage/internal/repositories/synccursor"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/syncer"
)

var validate = validator.New()

const defaultHistoryPageSize = 50

// Register registers sync routes
func Register(g *echo.Group) {
	g.POST("", TriggerSync)
	g.GET("/history", ListHistory)
	g.GET("/cursor/:entity_type", GetCursor)
}

// TriggerSync runs the sync pipeline synchronously and returns the run
// result. Responds 409 when a run is already in progress.
func TriggerSync(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.RunRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid request: %v", err)
	}
	for _, entity := range req.Entities {
		if !models.EntityType(entity).Valid() {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type: %s", entity)
		}
	}

	ctx, s, err := ectoinject.GetContext[*syncer.Syncer](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := s.TryRun(ctx, req)
	if err != nil {
		if errors.Is(err, syncer.ErrRunInProgress) {
			return httperror.NewHTTPError(http.StatusConflict, "a sync run is already in progress")
		}
		return err
	}

	// The run result is returned even when parts of the run failed; the
	// caller inspects per-entity and per-stage outcomes.
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, result)
}

// ListHistory returns sync history rows, newest first
func ListHistory(c echo.Context) error {
	ctx := c.Request().Context()

	var entityType *models.EntityType
	if raw := c.QueryParam("entity_type"); raw != "" {
		et := models.EntityType(raw)
		if !et.Valid() {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type: %s", raw)
		}
		entityType = &et
	}

	limit := defaultHistoryPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		offset = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*synccursor.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rows, err := repo.History(ctx, entityType, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// GetCursor returns the current cursor for one entity type
func GetCursor(c echo.Context) error {
	ctx := c.Request().Context()

	entityType := models.EntityType(c.Param("entity_type"))
	if !entityType.Valid() {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type: %s", entityType)
	}

	ctx, repo, err := ectoinject.GetContext[*synccursor.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	cursor, err := repo.Latest(ctx, entityType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cursor)
}
