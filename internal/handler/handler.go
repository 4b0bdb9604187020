// Package handler exposes the stored events over an authenticated read API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Open-SGF/sgf-meetup-api/internal/domain"
	"github.com/Open-SGF/sgf-meetup-api/internal/dto"
	"github.com/Open-SGF/sgf-meetup-api/internal/store"
)

// EventQuerier is the slice of the event store the read API uses.
type EventQuerier interface {
	QueryGroupEvents(ctx context.Context, group string, opts store.QueryOptions) ([]domain.Event, string, error)
}

// Handler serves the read API.
type Handler struct {
	events EventQuerier
	keys   []string
	router *gin.Engine
	now    func() time.Time
	log    *zap.Logger
}

// NewHandler creates a handler with the given set of valid API keys.
func NewHandler(events EventQuerier, keys []string, log *zap.Logger) *Handler {
	h := &Handler{
		events: events,
		keys:   keys,
		router: gin.New(),
		now:    time.Now,
		log:    log,
	}

	h.router.Use(gin.Recovery())
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.GET("/events", h.requireAPIKey, h.getEvents)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requireAPIKey checks the Authorization header against the configured key
// list. Keys are static shared secrets; there is no finer-grained authz.
func (h *Handler) requireAPIKey(c *gin.Context) {
	key := c.GetHeader("Authorization")

	if key == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "Authorization header is required",
		})
		return
	}

	if !slices.Contains(h.keys, key) {
		h.log.Warn("rejected request with invalid API key")
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "Authorization header is not valid",
		})
		return
	}

	c.Next()
}

// getEvents handles GET /events. The group parameter is mandatory; before
// and after take YYYYMMDD dates; the presence of next reinterprets the query
// as "the single next upcoming event", ignoring any other bounds.
func (h *Handler) getEvents(c *gin.Context) {
	group := c.Query("group")
	if group == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "The `group` query string parameter is required.",
		})
		return
	}

	opts, err := h.queryOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	events, nextCursor, err := h.events.QueryGroupEvents(c.Request.Context(), group, opts)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error("failed to query events",
			zap.String("group", group),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	response := dto.EventsResponse{
		Success:  true,
		PageInfo: dto.PageInfo{NextCursor: nextCursor},
		Events:   make([]dto.EventResponse, 0, len(events)),
	}
	for _, event := range events {
		response.Events = append(response.Events, toEventResponse(event))
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) queryOptions(c *gin.Context) (store.QueryOptions, error) {
	var opts store.QueryOptions

	if _, next := c.GetQuery("next"); next {
		after := h.now().UTC()
		limit := int32(1)
		opts.After = &after
		opts.Limit = &limit
		return opts, nil
	}

	if before := c.Query("before"); before != "" {
		t, err := parseDateParam(before)
		if err != nil {
			return opts, err
		}
		opts.Before = &t
	}

	if after := c.Query("after"); after != "" {
		t, err := parseDateParam(after)
		if err != nil {
			return opts, err
		}
		opts.After = &t
	}

	if limitParam := c.Query("limit"); limitParam != "" {
		limit, err := strconv.ParseInt(limitParam, 10, 32)
		if err != nil || limit < 1 {
			return opts, errors.New("limit must be a positive integer")
		}
		limit32 := int32(limit)
		opts.Limit = &limit32
	}

	opts.Cursor = c.Query("cursor")

	return opts, nil
}

// parseDateParam parses a YYYYMMDD date string as midnight UTC.
func parseDateParam(value string) (time.Time, error) {
	t, err := time.Parse("20060102", value)
	if err != nil {
		return time.Time{}, errors.New("dates must be in YYYYMMDD format")
	}
	return t.UTC(), nil
}

func toEventResponse(event domain.Event) dto.EventResponse {
	response := dto.EventResponse{
		ID:          event.ID,
		Title:       event.Title,
		EventURL:    event.EventURL,
		Description: event.Description,
		DateTime:    event.DateTime,
		Duration:    event.Duration,
		Venue: dto.VenueResponse{
			Name:       event.Venue.Name,
			Address:    event.Venue.Address,
			City:       event.Venue.City,
			State:      event.Venue.State,
			PostalCode: event.Venue.PostalCode,
		},
		Group: dto.GroupResponse{
			Name:    event.Group.Name,
			URLName: event.Group.URLName,
		},
		Host:   dto.HostResponse{Name: event.Host.Name},
		Images: make([]dto.ImageResponse, 0, len(event.Images)),
	}

	for _, image := range event.Images {
		response.Images = append(response.Images, dto.ImageResponse{
			BaseURL: image.BaseURL,
			Preview: image.Preview,
		})
	}

	return response
}
