package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/fixo/internal/common"
	"github.com/suPer8Hu/fixo/internal/repair"
)

func (h *Handler) GetCall(c *gin.Context) {
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
	view, err := h.Repair.GetCallState(c.Request.Context(), r.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, view)
}

func (h *Handler) RequestCall(c *gin.Context) { h.callOp(c, h.Repair.RequestCall) }
func (h *Handler) ApproveCall(c *gin.Context) { h.callOp(c, h.Repair.ApproveCall) }
func (h *Handler) ResetCall(c *gin.Context)   { h.callOp(c, h.Repair.ResetCall) }

func (h *Handler) callOp(c *gin.Context, op func(ctx context.Context, id string, actor repair.Actor) (repair.CallView, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	view, err := op(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, view)
}
