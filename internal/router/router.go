// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/serenispa/booking-engine/internal/config"
	"github.com/serenispa/booking-engine/internal/handler"
	"github.com/serenispa/booking-engine/internal/limiter"
	"github.com/serenispa/booking-engine/internal/middleware"
)

// Handlers groups every handler the router wires up.
type Handlers struct {
	Slots    *handler.SlotsHandler
	Bookings *handler.BookingHandler
	Verify   *handler.VerifyHandler
	Sync     *handler.SyncHandler
	Blocks   *handler.BlockHandler
}

// Register wires all routes onto the Echo instance.
//
// Route groups and their protection:
//   - availability reads: rate limited, response cached
//   - booking creation and the verify exchange: rate limited
//   - booking management: manage-token auth bound to the :id parameter
//   - admin surface: admin-scoped bearer auth
//   - calendar webhook: open, but token checked inside the handler
func Register(e *echo.Echo, h Handlers, cfg config.Config, rate limiter.Store, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	limited := middleware.RateLimit(rate, cfg.RateLimit.Prefix)
	cached := middleware.ResponseCache(cfg.Cache, rdb)

	slots := e.Group("/v1/slots", limited, cached)
	slots.GET("", h.Slots.GetSlots)
	slots.GET("/batch", h.Slots.GetSlotsBatch)

	bookings := e.Group("/v1/bookings")
	bookings.POST("", h.Bookings.Create, limited)
	bookings.GET("/:id", h.Bookings.Get, limited)
	bookings.POST("/:id/verify", h.Verify.Request, limited)
	bookings.POST("/:id/verify/confirm", h.Verify.Confirm, limited)

	manage := middleware.ManageAuth(cfg.JWTSecret)
	bookings.PATCH("/:id", h.Bookings.Update, manage)
	bookings.DELETE("/:id", h.Bookings.Cancel, manage)

	e.POST("/v1/calendar/webhook", h.Sync.Webhook)

	admin := e.Group("/v1/admin", middleware.AdminAuth(cfg.JWTSecret))
	admin.POST("/sync", h.Sync.AdminSync)
	admin.GET("/watch", h.Sync.WatchStatus)
	admin.POST("/blocks", h.Blocks.Create)
	admin.GET("/blocks", h.Blocks.List)
	admin.DELETE("/blocks/:id", h.Blocks.Delete)
	admin.GET("/bookings/:id", h.Bookings.AdminGet)
}
