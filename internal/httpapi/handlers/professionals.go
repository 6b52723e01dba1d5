package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/fixo/internal/common"
	"github.com/suPer8Hu/fixo/internal/repair"
)

type registerProfessionalReq struct {
	FullName          string  `json:"full_name" binding:"required"`
	Email             string  `json:"email"`
	PhoneNumber       string  `json:"phone_number"`
	TradeCategory     string  `json:"trade_category" binding:"required"`
	YearsOfExperience int     `json:"years_of_experience"`
	HourlyRate        float64 `json:"hourly_rate"`
	ServiceArea       string  `json:"service_area"`
	Bio               string  `json:"bio"`
}

// RegisterProfessional files the onboarding application of the calling
// professional. It stays pending until an admin reviews it.
func (h *Handler) RegisterProfessional(c *gin.Context) {
	actor, ok := professionalActor(c)
	if !ok {
		return
	}
	var req registerProfessionalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	p, err := h.Repair.RegisterProfessional(c.Request.Context(), actor.ID, repair.NewProfessional{
		FullName:          req.FullName,
		Email:             req.Email,
		PhoneNumber:       req.PhoneNumber,
		TradeCategory:     req.TradeCategory,
		YearsOfExperience: req.YearsOfExperience,
		HourlyRate:        req.HourlyRate,
		ServiceArea:       req.ServiceArea,
		Bio:               req.Bio,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, p)
}

// GetMyProfessional is the application status page of the caller.
func (h *Handler) GetMyProfessional(c *gin.Context) {
	actor, ok := professionalActor(c)
	if !ok {
		return
	}
	p, err := h.Repair.GetProfessional(c.Request.Context(), actor.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, p)
}

type updateProfileReq struct {
	Bio          *string  `json:"bio"`
	HourlyRate   *float64 `json:"hourly_rate"`
	ServiceArea  *string  `json:"service_area"`
	ProfilePhoto *string  `json:"profile_photo"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	actor, ok := professionalActor(c)
	if !ok {
		return
	}
	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	p, err := h.Repair.UpdateProfile(c.Request.Context(), actor.ID, repair.ProfileUpdate{
		Bio:          req.Bio,
		HourlyRate:   req.HourlyRate,
		ServiceArea:  req.ServiceArea,
		ProfilePhoto: req.ProfilePhoto,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, p)
}

func (h *Handler) GetProfessional(c *gin.Context) {
	p, err := h.Repair.GetProfessional(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, p)
}

// ListProfessionals returns the approved professionals, or only the
// available ones of a trade when ?trade= is given.
func (h *Handler) ListProfessionals(c *gin.Context) {
	var (
		pros []repair.Professional
		err  error
	)
	if trade := strings.TrimSpace(c.Query("trade")); trade != "" {
		pros, err = h.Repair.ListAvailableByTrade(c.Request.Context(), trade)
	} else {
		pros, err = h.Repair.ListApprovedProfessionals(c.Request.Context())
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"items": pros})
}

type availabilityReq struct {
	Available *bool `json:"available" binding:"required"`
}

func (h *Handler) SetAvailability(c *gin.Context) {
	actor, ok := professionalActor(c)
	if !ok {
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	if err := h.Repair.SetAvailability(c.Request.Context(), actor.ID, *req.Available); err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"available": *req.Available})
}

// ListPendingApplications is the admin review queue.
func (h *Handler) ListPendingApplications(c *gin.Context) {
	pros, err := h.Repair.ListPendingApplications(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"items": pros})
}

type reviewApplicationReq struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

func (h *Handler) ReviewApplication(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req reviewApplicationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}
	p, err := h.Repair.ReviewApplication(c.Request.Context(), c.Param("id"), actor.ID,
		repair.ApplicationStatus(req.Status), req.Notes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, p)
}

func professionalActor(c *gin.Context) (repair.Actor, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return repair.Actor{}, false
	}
	if actor.Role != repair.PartyProfessional {
		common.Fail(c, http.StatusForbidden, 40302, "professional role required")
		return repair.Actor{}, false
	}
	return actor, true
}
