package app

import (
	"net/http"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// Health is the response of the health web service.
// Status turns "degraded" once an edge was lost on a full handoff queue.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	HostName string `json:"hostName"`
	Uptime   string `json:"uptime"`
	Dropped  uint64 `json:"dropped"`
}

// HandleHealth returns data about the health of the edge pipeline.
// output example:
//
//	{"status":"ok","version":"1.0.10+20261001","hostName":"rpi","uptime":"1h2m3s","dropped":0}
func (app *App) HandleHealth() fiber.Handler {
	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		h := Health{
			Status:   "ok",
			Version:  VERSION,
			HostName: host,
			Uptime:   time.Since(app.started).Round(time.Second).String(),
			Dropped:  app.queue.Dropped(),
		}
		if h.Dropped > 0 {
			h.Status = "degraded"
		}
		ctx.Status(http.StatusOK)
		return ctx.JSON(h)
	}
}
