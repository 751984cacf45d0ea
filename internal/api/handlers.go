package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Veraticus/fintracker/internal/chat"
	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/engine"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.opts.Version,
		"time":    s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) dashboard(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Query("group_id"), 10, 64)
	if err != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_id is required"})
		return
	}

	group, ok := s.loadGroup(c, groupID)
	if !ok {
		return
	}
	dashboard, err := s.reports.Dashboard(c.Request.Context(), group, s.now())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) listPending(c *gin.Context) {
	groupID, ok := pathID(c, "group")
	if !ok {
		return
	}
	pending, err := s.storage.ListPending(c.Request.Context(), groupID)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]pendingDTO, 0, len(pending))
	for i := range pending {
		out = append(out, newPending(&pending[i]))
	}
	c.JSON(http.StatusOK, gin.H{"pending": out})
}

func (s *Server) createExpense(c *gin.Context) {
	groupID, ok := pathID(c, "group")
	if !ok {
		return
	}
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, valid := chat.ParseAmount(req.Amount)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive number"})
		return
	}
	if _, found := s.loadGroup(c, groupID); !found {
		return
	}

	entry := engine.Entry{
		GroupID:         groupID,
		UserID:          req.UserID,
		Amount:          amount,
		Note:            req.Note,
		Category:        req.Category,
		SourceMessageID: req.SourceMessageID,
	}
	if req.SpentAt != nil {
		entry.SpentAt = req.SpentAt.UTC()
	}

	result, err := s.engine.ClassifyAndRoute(c.Request.Context(), entry)
	if err != nil {
		s.fail(c, err)
		return
	}

	decision := result.Decision.String()
	if result.Manual {
		decision = "manual"
	}
	body := gin.H{
		"decision":   decision,
		"prediction": newPrediction(result.Prediction),
	}
	if result.Pending != nil {
		body["pending"] = newPending(result.Pending)
		body["choices"] = newChoices(result.Choices)
		c.JSON(http.StatusAccepted, body)
		return
	}
	body["expense"] = newExpense(s.engine.Taxonomy(), result.AutoApplied)
	c.JSON(http.StatusCreated, body)
}

func (s *Server) classify(c *gin.Context) {
	groupID, ok := pathID(c, "group")
	if !ok {
		return
	}
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prediction := s.engine.Predict(c.Request.Context(), groupID, req.Note)
	c.JSON(http.StatusOK, gin.H{
		"prediction": newPrediction(prediction),
		"auto_apply": prediction != nil && prediction.Confidence >= s.engine.Threshold(),
		"threshold":  s.engine.Threshold(),
	})
}

func (s *Server) resolvePending(c *gin.Context) {
	pendingID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expense, err := s.engine.ResolvePending(c.Request.Context(), pendingID, req.UserID, req.Choice)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": newExpense(s.engine.Taxonomy(), expense)})
}

func (s *Server) discardPending(c *gin.Context) {
	pendingID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req discardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.DiscardPending(c.Request.Context(), pendingID, req.UserID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) chatMessage(c *gin.Context) {
	var msg chat.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	replies, err := s.dispatcher.HandleMessage(c.Request.Context(), msg)
	if err != nil {
		s.fail(c, err)
		return
	}
	if replies == nil {
		replies = []chat.Reply{}
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies})
}

func (s *Server) chatCallback(c *gin.Context) {
	var cb chat.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := s.dispatcher.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (s *Server) loadGroup(c *gin.Context, groupID int64) (*model.Group, bool) {
	group, err := s.storage.GetGroup(c.Request.Context(), groupID)
	if errors.Is(err, common.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return nil, false
	}
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return group, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " id"})
		return 0, false
	}
	return id, true
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrInvalidCategory),
		errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidEntry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("request failed",
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey),
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
