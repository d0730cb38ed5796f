package api

import (
	"github.com/labstack/echo/v4"

	xhttp "StockPulse/pkg/http"
)

// Router composes all API handlers into one route registrar.
type Router struct {
	handlers []xhttp.Handler
}

func NewRouter(handlers ...xhttp.Handler) *Router {
	return &Router{handlers: handlers}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	for _, h := range r.handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}

var _ xhttp.Handler = (*Router)(nil)
