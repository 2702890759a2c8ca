package router // package router defines how HTTP routes are registered for the API

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/resource-api/internal/handler"
	"github.com/iliyamo/resource-api/internal/middleware"
	"github.com/iliyamo/resource-api/internal/model"
)

// Access decides which resource routes need a bearer token.
type Access int

const (
	// PublicReads leaves GET routes open and guards writes.
	PublicReads Access = iota
	// Guarded requires a token on every route.
	Guarded
	// AdminWrites requires a token on every route and the admin role on writes.
	AdminWrites
)

// Resource is one resource mounted under Path.
type Resource struct {
	Path    string
	Handler *handler.ResourceHandler
	Access  Access
	// Cache, when set, runs after the access checks on every route.
	Cache echo.MiddlewareFunc
}

// PathOf maps a table name to its URL path, e.g. user_groups -> /v1/user-groups.
func PathOf(table string) string {
	return "/v1/" + strings.ReplaceAll(table, "_", "-")
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, g prometheus.Gatherer) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

// RegisterAuth registers the /v1/auth endpoints.  Register and login are
// rate limited; check and logoff read the bearer token themselves; the
// session listing runs behind guard.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, guard, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.GET("/check", a.Check)
	g.POST("/logoff", a.Logoff)
	g.GET("/sessions", a.Sessions, guard)
	g.GET("/me", a.Me, guard)
}

// RegisterResources mounts list/get/create/update/delete for each resource.
func RegisterResources(e *echo.Echo, guard echo.MiddlewareFunc, resources ...Resource) {
	for _, r := range resources {
		h := r.Handler
		var read, write []echo.MiddlewareFunc
		switch r.Access {
		case Guarded:
			read = []echo.MiddlewareFunc{guard}
			write = read
		case AdminWrites:
			read = []echo.MiddlewareFunc{guard, middleware.WritesRequireRole(model.RoleAdmin)}
			write = read
		default:
			write = []echo.MiddlewareFunc{guard}
		}
		if r.Cache != nil {
			read = append(read[:len(read):len(read)], r.Cache)
			write = append(write[:len(write):len(write)], r.Cache)
		}
		e.GET(r.Path, h.List, read...)
		e.GET(r.Path+"/:id", h.Get, read...)
		e.POST(r.Path, h.Create, write...)
		e.PUT(r.Path+"/:id", h.Update, write...)
		e.DELETE(r.Path+"/:id", h.Delete, write...)
	}
}
