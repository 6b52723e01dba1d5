package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/fixo/internal/common"
	"github.com/suPer8Hu/fixo/internal/repair"
)

type postMessageReq struct {
	SenderName string `json:"sender_name"`
	Text       string `json:"text" binding:"required"`
}

func (h *Handler) PostMessage(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	m, err := h.Repair.PostMessage(c.Request.Context(), c.Param("id"), actor, req.SenderName, req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, m)
}

func (h *Handler) ListMessages(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	r, err := h.Repair.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !r.IsParticipant(actor) {
		h.writeError(c, repair.ErrUnauthorized)
		return
	}
	msgs, err := h.Repair.GetConversation(c.Request.Context(), r.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"request_id": r.ID, "messages": msgs})
}
