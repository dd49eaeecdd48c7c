package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/serenispa/booking-engine/internal/reconcile"
	"github.com/serenispa/booking-engine/internal/watch"
)

// Notification headers set by the calendar service on push callbacks.
const (
	headerResourceState = "X-Goog-Resource-State"
	headerChannelID     = "X-Goog-Channel-ID"
	headerChannelToken  = "X-Goog-Channel-Token"
)

// SyncHandler exposes the reconciliation engine over HTTP: the
// calendar's push webhook and the operator-triggered full sync.
type SyncHandler struct {
	Engine       *reconcile.Engine
	Renewer      *watch.Renewer
	WebhookToken string
}

func NewSyncHandler(engine *reconcile.Engine, renewer *watch.Renewer, webhookToken string) *SyncHandler {
	if engine == nil {
		panic("nil engine passed to NewSyncHandler")
	}
	return &SyncHandler{Engine: engine, Renewer: renewer, WebhookToken: webhookToken}
}

// Webhook handles POST /v1/calendar/webhook.  The calendar service
// retries non-2xx deliveries aggressively, so every outcome, including
// a bad token or a reconcile failure, is answered with 200; problems go
// to the log and the periodic sweep catches anything missed.
func (h *SyncHandler) Webhook(c echo.Context) error {
	state := c.Request().Header.Get(headerResourceState)
	channelID := c.Request().Header.Get(headerChannelID)

	if h.WebhookToken != "" && c.Request().Header.Get(headerChannelToken) != h.WebhookToken {
		c.Logger().Warnf("webhook: token mismatch on channel %s, ignoring", channelID)
		return c.NoContent(http.StatusOK)
	}
	if h.Renewer != nil && channelID != "" && !h.Renewer.Owns(channelID) {
		// Superseded channels keep delivering until they expire; their
		// doorbell is still real.
		c.Logger().Infof("webhook: notification from superseded channel %s", channelID)
	}

	ran, report, err := h.Engine.HandleNotification(c.Request().Context(), state, channelID)
	if err != nil {
		c.Logger().Errorf("webhook: reconcile: %v", err)
		return c.NoContent(http.StatusOK)
	}
	if ran && !report.Clean() {
		c.Logger().Infof("webhook: reconcile corrected drift: cancelled=%d updated=%d archived=%d errors=%d",
			len(report.Cancelled), len(report.Updated), len(report.Archived), len(report.Errors))
	}
	return c.NoContent(http.StatusOK)
}

// AdminSync handles POST /v1/admin/sync behind admin auth.  It runs a
// full default-window reconcile and returns the report so operators can
// see exactly what was corrected.
func (h *SyncHandler) AdminSync(c echo.Context) error {
	report, err := h.Engine.ReconcileDefault(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("admin sync: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "reconciliation failed", "report": report})
	}
	return c.JSON(http.StatusOK, report)
}

// WatchStatus handles GET /v1/admin/watch behind admin auth.  It
// reports the live push channel and renewal failure count.
func (h *SyncHandler) WatchStatus(c echo.Context) error {
	if h.Renewer == nil {
		return c.JSON(http.StatusOK, echo.Map{"enabled": false})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"enabled":  true,
		"channel":  h.Renewer.Current(),
		"failures": h.Renewer.Failures(),
	})
}
