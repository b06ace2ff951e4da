// Package rest is the thin HTTP surface over the booking coordinator and the
// availability planner. It owns no scheduling rules; it parses requests,
// delegates, and maps error kinds to status codes.
package rest

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"slotcore/internal/availability"
	"slotcore/internal/service/booking"
)

type Options struct {
	ServiceToken    string
	RequestTimeout  time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	Hours           availability.OperatingHours
	SlotDuration    time.Duration
	DefaultTimezone *time.Location
}

type handler struct {
	svc     *booking.Service
	planner *availability.Planner
	log     *slog.Logger
	opts    Options
}

func NewRouter(svc *booking.Service, planner *availability.Planner, log *slog.Logger, opts Options) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	if opts.DefaultTimezone == nil {
		opts.DefaultTimezone = time.UTC
	}
	if opts.SlotDuration <= 0 {
		opts.SlotDuration = 30 * time.Minute
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 5
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 10
	}

	h := &handler{
		svc:     svc,
		planner: planner,
		log:     log.With(slog.String("component", "rest")),
		opts:    opts,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestTimeout(opts.RequestTimeout))
	if opts.ServiceToken != "" {
		r.Use(serviceAuth(opts.ServiceToken))
	}

	rl := newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)

	api := r.Group("/api/v1")
	api.GET("/appointments", h.list)
	api.GET("/appointments/:id", h.get)
	api.POST("/appointments", rateLimit(rl), h.create)
	api.PATCH("/appointments/:id", rateLimit(rl), h.update)
	api.POST("/appointments/:id/cancel", rateLimit(rl), h.cancel)
	api.POST("/appointments/:id/reschedule", rateLimit(rl), h.reschedule)
	api.GET("/availability/day", h.daySlots)
	api.GET("/availability/month", h.monthOverview)

	return r
}
