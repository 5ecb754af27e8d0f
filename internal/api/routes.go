package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sponsormatch/internal/gate"
	"github.com/zulandar/sponsormatch/internal/models"
	"github.com/zulandar/sponsormatch/internal/reconcile"
)

// ActorHeader carries the acting account ID. Authentication happens in
// front of this service.
const ActorHeader = "X-Account-ID"

// maxBatch caps the number of profiles in one batch status request.
const maxBatch = 500

type handlers struct {
	engines *reconcile.Registry
	gate    *gate.Gate
	inbox   Inbox
	log     *slog.Logger
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api", requireActor())

	api.GET("/conversations", h.listConversations)
	api.POST("/conversations", h.openConversation)
	api.GET("/conversations/:id/messages", h.listMessages)
	api.POST("/conversations/:id/messages", h.sendMessage)

	api.GET("/notifications", h.listNotifications)
	api.POST("/notifications/:id/read", h.markRead)

	ch := api.Group("/:kind", h.withEngine())
	ch.POST("/expressions", h.express)
	ch.POST("/expressions/:id/respond", h.respond)
	ch.POST("/expressions/:id/withdraw", h.withdraw)
	ch.GET("/status/:profileID", h.status)
	ch.POST("/status/batch", h.batchStatus)
	ch.GET("/sent", h.sent)
	ch.GET("/received", h.received)
	ch.GET("/mutual", h.mutual)
	ch.GET("/counts", h.counts)
}

func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actor == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ActorHeader + " header is required"})
			return
		}
		c.Set("actor", actor)
		c.Next()
	}
}

func actor(c *gin.Context) string {
	return c.GetString("actor")
}

func (h *handlers) withEngine() gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := h.engines.Engine(c.Param("kind"))
		if err != nil {
			h.writeError(c, err)
			c.Abort()
			return
		}
		c.Set("engine", e)
		c.Next()
	}
}

func engine(c *gin.Context) *reconcile.Engine {
	return c.MustGet("engine").(*reconcile.Engine)
}

// statusFilter parses ?status=pending,accepted.
func statusFilter(c *gin.Context) ([]models.ExpressionStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	var out []models.ExpressionStatus
	for _, s := range strings.Split(raw, ",") {
		st := models.ExpressionStatus(strings.TrimSpace(s))
		if !st.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + strconv.Quote(string(st))})
			return nil, false
		}
		out = append(out, st)
	}
	return out, true
}

type expressRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
}

func (h *handlers) express(c *gin.Context) {
	var req expressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := engine(c).ExpressTo(c.Request.Context(), actor(c), req.ReceiverID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOutcomeView(out))
}

type respondRequest struct {
	Decision string `json:"decision" binding:"required,oneof=accepted rejected"`
}

func (h *handlers) respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := engine(c).Respond(c.Request.Context(), actor(c), c.Param("id"), reconcile.Decision(req.Decision))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOutcomeView(out))
}

func (h *handlers) withdraw(c *gin.Context) {
	out, err := engine(c).Withdraw(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOutcomeView(out))
}

func (h *handlers) status(c *gin.Context) {
	st, err := engine(c).GetStatus(c.Request.Context(), actor(c), c.Param("profileID"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile_id": c.Param("profileID"), "status": st})
}

type batchRequest struct {
	ProfileIDs []string `json:"profile_ids" binding:"required"`
}

func (h *handlers) batchStatus(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.ProfileIDs) > maxBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many profile_ids, max " + strconv.Itoa(maxBatch)})
		return
	}
	got, err := engine(c).BatchStatus(c.Request.Context(), actor(c), req.ProfileIDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": got})
}

func (h *handlers) sent(c *gin.Context) {
	statuses, ok := statusFilter(c)
	if !ok {
		return
	}
	xs, err := engine(c).ListSent(c.Request.Context(), actor(c), statuses...)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expressions": toExpressionViews(xs)})
}

func (h *handlers) received(c *gin.Context) {
	statuses, ok := statusFilter(c)
	if !ok {
		return
	}
	xs, err := engine(c).ListReceived(c.Request.Context(), actor(c), statuses...)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expressions": toExpressionViews(xs)})
}

func (h *handlers) mutual(c *gin.Context) {
	xs, err := engine(c).ListMutual(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expressions": toExpressionViews(xs)})
}

func (h *handlers) counts(c *gin.Context) {
	counts, err := engine(c).Counts(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *handlers) listConversations(c *gin.Context) {
	convs, err := h.gate.ListFor(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]*conversationView, len(convs))
	for i := range convs {
		out[i] = toConversationView(&convs[i])
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

type openConversationRequest struct {
	ASideEntityID string `json:"a_side_entity_id" binding:"required"`
	BSideEntityID string `json:"b_side_entity_id" binding:"required"`
}

func (h *handlers) openConversation(c *gin.Context) {
	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.gate.GetOrCreate(c.Request.Context(), actor(c), req.ASideEntityID, req.BSideEntityID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConversationView(conv))
}

func (h *handlers) listMessages(c *gin.Context) {
	msgs, err := h.gate.Messages(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]messageView, len(msgs))
	for i, m := range msgs {
		out[i] = messageView{ID: m.ID, SenderID: m.SenderAccountID, Body: m.Body, CreatedAt: m.CreatedAt}
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *handlers) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.gate.SendMessage(c.Request.Context(), actor(c), c.Param("id"), req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, messageView{ID: m.ID, SenderID: m.SenderAccountID, Body: m.Body, CreatedAt: m.CreatedAt})
}

func (h *handlers) listNotifications(c *gin.Context) {
	notes, err := h.inbox.Inbox(c.Request.Context(), actor(c), c.Query("unread") == "true")
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]notificationView, len(notes))
	for i, n := range notes {
		out[i] = notificationView{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Kind:      n.Kind,
			RelatedID: n.RelatedID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

func (h *handlers) markRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	if err := h.inbox.MarkRead(c.Request.Context(), actor(c), uint(id)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
