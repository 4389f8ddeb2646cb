package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/introvirght/engagement-backend/internal/http/middleware"
	"github.com/introvirght/engagement-backend/internal/http/response"
	"github.com/introvirght/engagement-backend/internal/platform/apierr"
	"github.com/introvirght/engagement-backend/internal/services"
)

const maxBodyBytes = 1 << 20

type EngagementHandler struct {
	engagement services.EngagementService
}

func NewEngagementHandler(engagement services.EngagementService) *EngagementHandler {
	return &EngagementHandler{engagement: engagement}
}

type processEventRequest struct {
	UserID    string         `json:"user_id"`
	EventType string         `json:"event_type"`
	Metadata  map[string]any `json:"metadata"`
}

// POST /api/engagement/events
func (h *EngagementHandler) ProcessEvent(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var req processEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	userID, ok := parseUserID(c, req.UserID)
	if !ok {
		return
	}
	res, err := h.engagement.ProcessEvent(c.Request.Context(), services.ProcessEventInput{
		UserID:    userID,
		EventType: req.EventType,
		Metadata:  req.Metadata,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if res.Throttled {
		if secs := int(math.Ceil(res.RetryAfter.Seconds())); secs > 0 {
			c.Header("Retry-After", strconv.Itoa(secs))
		}
		response.RespondErr(c, apierr.TooManyRequests("throttled", errors.New("too many "+strings.TrimSpace(req.EventType)+" events")))
		return
	}
	response.RespondOK(c, gin.H{
		"rewards":      res.Rewards,
		"celebrations": res.Celebrations,
		"throttled":    false,
	})
}

// GET /api/engagement/profiles/:user_id
func (h *EngagementHandler) GetProfile(c *gin.Context) {
	userID, ok := parseUserID(c, c.Param("user_id"))
	if !ok {
		return
	}
	p, err := h.engagement.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// GET /api/engagement/profiles/:user_id/events?limit=
func (h *EngagementHandler) ListEvents(c *gin.Context) {
	userID, ok := parseUserID(c, c.Param("user_id"))
	if !ok {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	events, err := h.engagement.ListEvents(c.Request.Context(), userID, limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"events": events})
}

// parseUserID writes a 400 and returns false when raw is not a usable id.
func parseUserID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", errors.New("user_id must be a uuid"))
		return uuid.Nil, false
	}
	c.Set(middleware.ContextUserID, id.String())
	return id, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, errors.New(name+" must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}
