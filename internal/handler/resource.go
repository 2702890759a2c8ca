package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-api/internal/schema"
	"github.com/iliyamo/resource-api/internal/service"
)

// Resources is the controller a ResourceHandler serves.
// *service.Controller implements it.
type Resources interface {
	List(ctx context.Context, q service.ListQuery) (service.Page, error)
	Get(ctx context.Context, id int64) (schema.Record, error)
	Create(ctx context.Context, body map[string]any) (schema.Record, error)
	Update(ctx context.Context, id int64, body map[string]any) (schema.Record, error)
	Delete(ctx context.Context, id int64) (schema.Record, error)
}

// ResourceHandler exposes one controller as list/get/create/update/delete.
type ResourceHandler struct {
	ctl Resources
}

func NewResourceHandler(ctl Resources) *ResourceHandler {
	return &ResourceHandler{ctl: ctl}
}

func parseID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// decodeBody reads a JSON object, keeping numbers exact.
func decodeBody(c echo.Context) (map[string]any, bool) {
	var body map[string]any
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		return nil, false
	}
	return body, true
}

// List handles GET <path>?page=&perPage=&sort=&order=&<field>=.
func (h *ResourceHandler) List(c echo.Context) error {
	params := make(map[string]string)
	for k, v := range c.QueryParams() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	q, err := service.ParseListQuery(params)
	if err != nil {
		return fail(c, err)
	}
	page, err := h.ctl.List(c.Request().Context(), q)
	if err != nil {
		return fail(c, err)
	}
	return okList(c, page.Items, page.Total)
}

func (h *ResourceHandler) Get(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id", "id")
	}
	rec, err := h.ctl.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", rec)
}

func (h *ResourceHandler) Create(c echo.Context) error {
	body, valid := decodeBody(c)
	if !valid {
		return badRequest(c, "invalid body")
	}
	rec, err := h.ctl.Create(c.Request().Context(), body)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, "record created", rec)
}

func (h *ResourceHandler) Update(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id", "id")
	}
	body, valid := decodeBody(c)
	if !valid {
		return badRequest(c, "invalid body")
	}
	rec, err := h.ctl.Update(c.Request().Context(), id, body)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "record updated", rec)
}

func (h *ResourceHandler) Delete(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id", "id")
	}
	rec, err := h.ctl.Delete(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "record deleted", rec)
}
