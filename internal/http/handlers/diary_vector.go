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

type DiaryVectorHandler struct {
	recall services.RecallService
}

func NewDiaryVectorHandler(recallSvc services.RecallService) *DiaryVectorHandler {
	return &DiaryVectorHandler{recall: recallSvc}
}

type storeVectorRequest struct {
	EntryID  string              `json:"entry_id"`
	UserID   string              `json:"user_id"`
	Content  string              `json:"content"`
	Metadata types.DiaryMetadata `json:"metadata"`
	Async    bool                `json:"async"`
}

type searchRequest struct {
	UserID    string   `json:"user_id"`
	Query     string   `json:"query"`
	K         int      `json:"k"`
	Threshold *float64 `json:"threshold"`
}

// POST /api/diary/vectors
func (h *DiaryVectorHandler) Store(c *gin.Context) {
	req, ok := bindStore(c)
	if !ok {
		return
	}
	entryID, err := uuid.Parse(strings.TrimSpace(req.EntryID))
	if err != nil || entryID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_entry_id", errors.New("entry_id must be a uuid"))
		return
	}
	h.write(c, entryID, req, false)
}

// PUT /api/diary/vectors/:entry_id
func (h *DiaryVectorHandler) Update(c *gin.Context) {
	entryID, ok := parseUUIDParam(c, "entry_id")
	if !ok {
		return
	}
	req, ok := bindStore(c)
	if !ok {
		return
	}
	h.write(c, entryID, req, true)
}

func (h *DiaryVectorHandler) write(c *gin.Context, entryID uuid.UUID, req storeVectorRequest, update bool) {
	userID, ok := parseUserID(c, req.UserID)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		response.RespondError(c, http.StatusBadRequest, "empty_content", errors.New("content is required"))
		return
	}
	in := services.StoreDiaryVectorInput{EntryID: entryID, UserID: userID, Content: req.Content, Metadata: req.Metadata}
	if req.Async {
		job, err := h.recall.EnqueueStore(c.Request.Context(), in)
		if err != nil {
			response.RespondErr(c, err)
			return
		}
		response.RespondAccepted(c, gin.H{"job_id": job.ID, "status": job.Status})
		return
	}
	var (
		row *types.DiaryVector
		err error
	)
	if update {
		row, err = h.recall.Update(c.Request.Context(), in)
	} else {
		row, err = h.recall.Store(c.Request.Context(), in)
	}
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"vector": row})
}

// DELETE /api/diary/vectors/:entry_id?user_id=&async=
func (h *DiaryVectorHandler) Delete(c *gin.Context) {
	entryID, ok := parseUUIDParam(c, "entry_id")
	if !ok {
		return
	}
	if c.Query("async") == "true" {
		userID, ok := parseUserID(c, c.Query("user_id"))
		if !ok {
			return
		}
		job, err := h.recall.EnqueueDelete(c.Request.Context(), userID, entryID)
		if err != nil {
			response.RespondErr(c, err)
			return
		}
		response.RespondAccepted(c, gin.H{"job_id": job.ID, "status": job.Status})
		return
	}
	if err := h.recall.Delete(c.Request.Context(), entryID); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

// POST /api/diary/vectors/search
func (h *DiaryVectorHandler) Search(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	userID, ok := parseUserID(c, req.UserID)
	if !ok {
		return
	}
	matches, err := h.recall.SearchSimilar(c.Request.Context(), services.SearchSimilarInput{
		UserID:    userID,
		Query:     req.Query,
		K:         req.K,
		Threshold: req.Threshold,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if matches == nil {
		matches = []recall.Match{}
	}
	response.RespondOK(c, gin.H{"results": matches})
}

func bindStore(c *gin.Context) (storeVectorRequest, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var req storeVectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return req, false
	}
	return req, true
}
