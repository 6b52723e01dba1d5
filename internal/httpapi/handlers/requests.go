package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/fixo/internal/common"
	"github.com/suPer8Hu/fixo/internal/repair"
)

type createRequestReq struct {
	Type          repair.RequestType  `json:"type" binding:"required"`
	Title         string              `json:"title" binding:"required"`
	Description   string              `json:"description"`
	ProblemType   string              `json:"problem_type"`
	ServiceType   string              `json:"service_type"`
	PreferredDate string              `json:"preferred_date"`
	PreferredTime string              `json:"preferred_time"`
	Attachments   []repair.Attachment `json:"attachments"`
}

func (h *Handler) CreateRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok || actor.Role != repair.PartyRequester {
		unauthorized(c)
		return
	}
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}

	r, err := h.Repair.CreateRequest(c.Request.Context(), actor.ID, repair.NewRequest{
		Type:          req.Type,
		Title:         req.Title,
		Description:   req.Description,
		ProblemType:   req.ProblemType,
		ServiceType:   req.ServiceType,
		PreferredDate: req.PreferredDate,
		PreferredTime: req.PreferredTime,
		Attachments:   req.Attachments,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, r)
}

// ListMyRequests returns the caller's own requests, newest first.
func (h *Handler) ListMyRequests(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	list, err := h.Repair.ListByRequester(c.Request.Context(), actor.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"requests": list})
}

// ListAvailable is the board of unassigned requests shown to professionals.
func (h *Handler) ListAvailable(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok || actor.Role != repair.PartyProfessional {
		unauthorized(c)
		return
	}
	list, err := h.Repair.ListAvailable(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"requests": list})
}

// GetRequest is visible to participants, and to any professional while the
// request is still unassigned.
func (h *Handler) GetRequest(c *gin.Context) {
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
	browsing := actor.Role == repair.PartyProfessional && !r.Assigned()
	if !r.IsParticipant(actor) && !browsing {
		h.writeError(c, repair.ErrUnauthorized)
		return
	}
	common.OK(c, r)
}

func (h *Handler) DeleteRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	if err := h.Repair.DeleteRequest(c.Request.Context(), c.Param("id"), actor); err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

// AcceptRequest binds the calling professional to the request.
func (h *Handler) AcceptRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok || actor.Role != repair.PartyProfessional {
		unauthorized(c)
		return
	}
	r, err := h.Repair.AcceptRequest(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, r)
}

func (h *Handler) AdvanceRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	r, err := h.Repair.Advance(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, r)
}

type setStatusReq struct {
	Status repair.Status `json:"status" binding:"required"`
}

func (h *Handler) SetStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	r, err := h.Repair.SetStatus(c.Request.Context(), c.Param("id"), actor, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, r)
}

type rateReq struct {
	Stars int `json:"stars" binding:"required"`
}

func (h *Handler) RateRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req rateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	r, err := h.Repair.RateRequest(c.Request.Context(), c.Param("id"), actor, req.Stars)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, r)
}
