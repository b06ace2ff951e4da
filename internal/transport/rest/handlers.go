package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"slotcore/internal/availability"
	"slotcore/internal/domain"
	"slotcore/internal/service/booking"
	"slotcore/internal/store"
)

type createRequest struct {
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	OwnerEmail string `json:"ownerEmail"`
	OwnerName  string `json:"ownerName"`
	Notes      string `json:"notes"`
}

type updateRequest struct {
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
	Notes     *string `json:"notes"`
}

type rescheduleRequest struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type conflictSummary struct {
	ID        uuid.UUID `json:"id"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	OwnerName string    `json:"ownerName"`
}

func (h *handler) create(c *gin.Context) {
	log := h.log.With(slog.String("route", "create"))

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, end, ok := parseTimes(c, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	appt, err := h.svc.Create(c.Request.Context(), booking.CreateInput{
		OwnerEmail: req.OwnerEmail,
		OwnerName:  req.OwnerName,
		Notes:      req.Notes,
		StartTime:  start,
		EndTime:    end,
	})
	if err != nil {
		h.writeError(c, log, err)
		return
	}

	log.Info(
		"appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)
	c.JSON(http.StatusCreated, appt)
}

func (h *handler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	appt, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, h.log.With(slog.String("route", "get")), err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *handler) list(c *gin.Context) {
	log := h.log.With(slog.String("route", "list"))

	from, fromErr := time.Parse(time.RFC3339, c.Query("from"))
	to, toErr := time.Parse(time.RFC3339, c.Query("to"))
	if fromErr != nil || toErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC 3339 timestamps"})
		return
	}

	appts, err := h.svc.List(c.Request.Context(), from, to)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	if appts == nil {
		appts = []domain.Appointment{}
	}
	c.JSON(http.StatusOK, appts)
}

func (h *handler) update(c *gin.Context) {
	log := h.log.With(slog.String("route", "update"))

	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := booking.UpdateInput{Notes: req.Notes}
	if req.StartTime != nil || req.EndTime != nil {
		if req.StartTime == nil || req.EndTime == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "startTime and endTime must be provided together"})
			return
		}
		start, end, ok := parseTimes(c, *req.StartTime, *req.EndTime)
		if !ok {
			return
		}
		in.StartTime = &start
		in.EndTime = &end
	}

	appt, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *handler) cancel(c *gin.Context) {
	log := h.log.With(slog.String("route", "cancel"))

	id, ok := parseID(c)
	if !ok {
		return
	}

	appt, err := h.svc.Cancel(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}

	log.Info("appointment cancelled", slog.String("appointment_id", appt.ID.String()))
	c.JSON(http.StatusOK, appt)
}

func (h *handler) reschedule(c *gin.Context) {
	log := h.log.With(slog.String("route", "reschedule"))

	id, ok := parseID(c)
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end, ok := parseTimes(c, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	appt, err := h.svc.Reschedule(c.Request.Context(), id, start, end)
	if err != nil {
		h.writeError(c, log, err)
		return
	}

	log.Info(
		"appointment rescheduled",
		slog.String("superseded_id", id.String()),
		slog.String("appointment_id", appt.ID.String()),
	)
	c.JSON(http.StatusCreated, appt)
}

func (h *handler) daySlots(c *gin.Context) {
	log := h.log.With(slog.String("route", "day_slots"))

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must look like 2024-12-15"})
		return
	}

	loc, ok := h.parseTimezone(c)
	if !ok {
		return
	}

	slots, err := h.planner.DaySlots(c.Request.Context(), availability.DayRequest{
		Year:         date.Year(),
		Month:        date.Month(),
		Day:          date.Day(),
		Location:     loc,
		Hours:        h.opts.Hours,
		SlotDuration: h.opts.SlotDuration,
	})
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	if slots == nil {
		slots = []availability.Slot{}
	}
	c.JSON(http.StatusOK, slots)
}

func (h *handler) monthOverview(c *gin.Context) {
	log := h.log.With(slog.String("route", "month_overview"))

	year, yearErr := strconv.Atoi(c.Query("year"))
	month, monthErr := strconv.Atoi(c.Query("month"))
	if yearErr != nil || monthErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year and month are required numbers"})
		return
	}

	loc, ok := h.parseTimezone(c)
	if !ok {
		return
	}

	days, err := h.planner.MonthOverview(c.Request.Context(), availability.MonthRequest{
		Year:     year,
		Month:    time.Month(month),
		Location: loc,
		Hours:    h.opts.Hours,
	})
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

func (h *handler) parseTimezone(c *gin.Context) (*time.Location, bool) {
	tz := c.Query("tz")
	if tz == "" {
		return h.opts.DefaultTimezone, true
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timezone"})
		return nil, false
	}
	return loc, true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseTimes(c *gin.Context, startStr, endStr string) (start, end time.Time, ok bool) {
	start, startErr := time.Parse(time.RFC3339, startStr)
	end, endErr := time.Parse(time.RFC3339, endStr)
	if startErr != nil || endErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startTime and endTime must be RFC 3339 timestamps"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *handler) writeError(c *gin.Context, log *slog.Logger, err error) {
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", slog.Any("err", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		return
	}

	var cErr *booking.ConflictError
	if errors.As(err, &cErr) {
		summaries := make([]conflictSummary, 0, len(cErr.Conflicts))
		for _, a := range cErr.Conflicts {
			summaries = append(summaries, conflictSummary{
				ID:        a.ID,
				StartTime: a.StartTime,
				EndTime:   a.EndTime,
				OwnerName: a.OwnerName,
			})
		}
		log.Info("booking conflict", slog.Int("conflicts", len(summaries)))
		c.JSON(http.StatusConflict, gin.H{
			"error":     "requested time overlaps an existing appointment",
			"conflicts": summaries,
		})
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		return
	}
	if errors.Is(err, booking.ErrInvalidState) {
		c.JSON(http.StatusConflict, gin.H{"error": "appointment is in a terminal state"})
		return
	}
	if errors.Is(err, availability.ErrInvalidSlotDuration) ||
		errors.Is(err, availability.ErrInvalidOperatingHours) ||
		errors.Is(err, availability.ErrInvalidDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Error("request failed", slog.Any("err", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
