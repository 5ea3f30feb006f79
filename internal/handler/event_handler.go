package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skrillzofficial/eventry-api/internal/dto"
	"github.com/skrillzofficial/eventry-api/internal/models"
	"github.com/skrillzofficial/eventry-api/internal/service"
	appErrors "github.com/skrillzofficial/eventry-api/pkg/errors"
	"github.com/skrillzofficial/eventry-api/pkg/response"
	"github.com/skrillzofficial/eventry-api/pkg/storage"
)

// EventHandler wires HTTP endpoints to the event service.
type EventHandler struct {
	service     *service.EventService
	uploads     *storage.LocalStorage
	metrics     *service.MetricsService
	maxFileSize int64
}

// NewEventHandler creates a new handler.
func NewEventHandler(svc *service.EventService, uploads *storage.LocalStorage, metrics *service.MetricsService, maxFileSize int64) *EventHandler {
	return &EventHandler{service: svc, uploads: uploads, metrics: metrics, maxFileSize: maxFileSize}
}

// Create godoc
// @Summary Create event draft
// @Description Save a new event draft; incomplete drafts are allowed
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.SaveEventRequest true "Event draft"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.SaveEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	event, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req.Draft, req.Images)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Update event draft
// @Description Update an event the caller organizes
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.SaveEventRequest true "Event draft"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.SaveEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	event, err := h.service.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.Draft, req.Images)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Get godoc
// @Summary Get event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "Filter by status"
// @Param category query string false "Filter by category"
// @Param search query string false "Search title and description"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	filter := models.EventFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if status := c.Query("status"); status != "" {
		s := models.EventStatus(status)
		filter.Status = &s
	}
	if c.Query("mine") == "true" {
		if claims := claimsFromContext(c); claims != nil {
			filter.OrganizerID = claims.UserID
		}
	}

	events, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// CheckPublication godoc
// @Summary Check publishability
// @Description Run publication validation without changing any state
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/publication-check [get]
func (h *EventHandler) CheckPublication(c *gin.Context) {
	check, err := h.service.CheckPublication(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check, nil)
}

// Publish godoc
// @Summary Publish event
// @Description Publish a draft; a fully free event requires a service fee first
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /events/{id}/publish [post]
func (h *EventHandler) Publish(c *gin.Context) {
	res, err := h.service.Publish(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	switch {
	case !res.Check.Publishable:
		h.metrics.RecordPublishAttempt("blocked")
		response.JSON(c, http.StatusUnprocessableEntity, res, nil)
	case res.ServiceFeeRequired:
		h.metrics.RecordPublishAttempt("fee_required")
		response.JSON(c, http.StatusOK, res, nil)
	default:
		h.metrics.RecordPublishAttempt("published")
		response.JSON(c, http.StatusOK, res, nil)
	}
}

// Cancel godoc
// @Summary Cancel event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/cancel [post]
func (h *EventHandler) Cancel(c *gin.Context) {
	event, err := h.service.Cancel(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// UploadImage godoc
// @Summary Upload event image
// @Description Store an image file and return its filename for use in a draft
// @Tags Events
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Image file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events/images [post]
func (h *EventHandler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image file required"))
		return
	}
	if h.maxFileSize > 0 && file.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image exceeds the maximum allowed size"))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close()

	name := fmt.Sprintf("%s%s", uuid.NewString(), filepath.Ext(file.Filename))
	stored, err := h.uploads.SaveStream(name, src)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload"))
		return
	}
	response.Created(c, gin.H{"filename": stored})
}
