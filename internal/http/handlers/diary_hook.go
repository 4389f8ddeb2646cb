package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/http/response"
	"github.com/introvirght/engagement-backend/internal/modules/recall"
	"github.com/introvirght/engagement-backend/internal/services"
)

// DiaryHookHandler receives commit notifications from the diary service.
type DiaryHookHandler struct {
	reporter services.ActivityReporter
}

func NewDiaryHookHandler(reporter services.ActivityReporter) *DiaryHookHandler {
	return &DiaryHookHandler{reporter: reporter}
}

type diaryHookRequest struct {
	Action   string              `json:"action"`
	EntryID  string              `json:"entry_id"`
	UserID   string              `json:"user_id"`
	Content  string              `json:"content"`
	Metadata types.DiaryMetadata `json:"metadata"`
	// Event carries engagement metadata such as quality_score or emotional_context.
	Event map[string]any `json:"event"`
}

// POST /api/hooks/diary-entries
func (h *DiaryHookHandler) Notify(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var req diaryHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	userID, ok := parseUserID(c, req.UserID)
	if !ok {
		return
	}
	entryID, err := uuid.Parse(strings.TrimSpace(req.EntryID))
	if err != nil || entryID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_entry_id", errors.New("entry_id must be a uuid"))
		return
	}
	in := services.StoreDiaryVectorInput{EntryID: entryID, UserID: userID, Content: req.Content, Metadata: req.Metadata}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action == "created" || action == "updated" {
		if err := recall.ValidateMetadata(req.Metadata); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_metadata", err)
			return
		}
	}

	switch action {
	case "created":
		res := h.reporter.DiaryCreated(c.Request.Context(), in, req.Event)
		body := gin.H{"accepted": true}
		if res != nil {
			body["rewards"] = res.Rewards
			body["celebrations"] = res.Celebrations
			body["throttled"] = res.Throttled
		}
		response.RespondAccepted(c, body)
	case "updated":
		h.reporter.DiaryUpdated(c.Request.Context(), in)
		response.RespondAccepted(c, gin.H{"accepted": true})
	case "deleted":
		h.reporter.DiaryDeleted(c.Request.Context(), userID, entryID)
		response.RespondAccepted(c, gin.H{"accepted": true})
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_action", errors.New("action must be created, updated or deleted"))
	}
}
