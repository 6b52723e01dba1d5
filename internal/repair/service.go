package repair

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/fixo/internal/common"
	"github.com/suPer8Hu/fixo/internal/logging"
	"go.uber.org/zap"
)

// Service is the request lifecycle orchestrator. Every operation is a single
// read-modify-write of one request row.
type Service struct {
	repo   *Repo
	minter LinkMinter
	log    *zap.Logger
}

func NewService(repo *Repo, minter LinkMinter, log *zap.Logger) *Service {
	if minter == nil {
		minter = UUIDLinkMinter{}
	}
	return &Service{repo: repo, minter: minter, log: logging.OrNop(log)}
}

type NewRequest struct {
	Type          RequestType
	Title         string
	Description   string
	ProblemType   string
	ServiceType   string
	PreferredDate string
	PreferredTime string
	Attachments   []Attachment
}

func (s *Service) CreateRequest(ctx context.Context, requesterID string, in NewRequest) (*Request, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, ErrUnauthorized
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown request type %q", ErrInvalidInput, in.Type)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	attachments := in.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}
	req := &Request{
		ID:            id,
		RequesterID:   requesterID,
		Type:          in.Type,
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		Status:        StatusLogged,
		ProblemType:   in.ProblemType,
		ServiceType:   in.ServiceType,
		PreferredDate: in.PreferredDate,
		PreferredTime: in.PreferredTime,
		Attachments:   attachments,
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	s.log.Info("request created",
		zap.String("request_id", req.ID),
		zap.String("requester_id", requesterID),
		zap.String("type", string(req.Type)))
	return req, nil
}

func (s *Service) GetRequest(ctx context.Context, id string) (*Request, error) {
	return s.repo.GetRequest(ctx, id)
}

func (s *Service) ListByRequester(ctx context.Context, requesterID string) ([]Request, error) {
	return s.repo.ListRequestsByRequester(ctx, requesterID)
}

// ListAvailable is the professional-facing board of unassigned requests.
func (s *Service) ListAvailable(ctx context.Context) ([]Request, error) {
	return s.repo.ListUnassignedRequests(ctx)
}

// DeleteRequest lets the requester withdraw a request that is not completed.
func (s *Service) DeleteRequest(ctx context.Context, id string, actor Actor) error {
	err := s.repo.DeleteRequest(ctx, id, func(req *Request) error {
		if p, ok := req.partyOf(actor); !ok || p != PartyRequester {
			return ErrUnauthorized
		}
		if req.Status.Terminal() {
			return ErrTerminalRequest
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("request deleted", zap.String("request_id", id), zap.String("actor", actor.ID))
	return nil
}

// AcceptRequest binds professionalID to the request. Exactly one concurrent
// caller wins; the rest get ErrAlreadyAssigned.
func (s *Service) AcceptRequest(ctx context.Context, id string, professionalID string) (*Request, error) {
	pro, err := s.repo.GetProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if !pro.Approved() {
		return nil, ErrNotApproved
	}
	if !pro.IsAvailable {
		return nil, ErrProfessionalUnavailable
	}

	var t Transition
	req, err := s.repo.MutateRequest(ctx, id, func(req *Request, now time.Time) ([]Effect, error) {
		var err error
		t, err = planAccept(req, professionalID, now)
		return t.Effects, err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("request accepted",
		zap.String("request_id", id),
		zap.String("professional_id", professionalID),
		zap.String("status", string(t.To)))
	return req, nil
}

// Advance moves the request one step along logged -> in-analysis -> fixing -> completed.
func (s *Service) Advance(ctx context.Context, id string, actor Actor) (*Request, error) {
	return s.transition(ctx, id, func(req *Request) (Transition, error) {
		return planAdvance(req, actor)
	})
}

// SetStatus is the professional's explicit one-step status change.
func (s *Service) SetStatus(ctx context.Context, id string, actor Actor, target Status) (*Request, error) {
	return s.transition(ctx, id, func(req *Request) (Transition, error) {
		return planSetStatus(req, actor, target)
	})
}

func (s *Service) transition(ctx context.Context, id string, plan func(req *Request) (Transition, error)) (*Request, error) {
	var t Transition
	req, err := s.repo.MutateRequest(ctx, id, func(req *Request, now time.Time) ([]Effect, error) {
		var err error
		t, err = plan(req)
		return t.Effects, err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("request status changed",
		zap.String("request_id", id),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.Int("effects", len(t.Effects)))
	return req, nil
}

// RateRequest stores the requester's rating and folds it into the
// professional's running average.
func (s *Service) RateRequest(ctx context.Context, id string, actor Actor, stars int) (*Request, error) {
	return s.repo.MutateRequest(ctx, id, func(req *Request, now time.Time) ([]Effect, error) {
		t, err := planRate(req, actor, stars)
		return t.Effects, err
	})
}

// AppendMessage adds one message to the request's conversation. Messages are
// never edited or removed.
func (s *Service) AppendMessage(ctx context.Context, requestID string, role SenderRole, senderName, text string) (*Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown sender role %q", ErrInvalidInput, role)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	m := &Message{
		ID:         id,
		RequestID:  requestID,
		SenderRole: role,
		SenderName: senderName,
		Text:       text,
	}
	if err := s.repo.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// PostMessage is AppendMessage for a participant; the sender role follows
// the actor's side of the request.
func (s *Service) PostMessage(ctx context.Context, requestID string, actor Actor, senderName, text string) (*Message, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	party, ok := req.partyOf(actor)
	if !ok {
		return nil, ErrUnauthorized
	}
	return s.AppendMessage(ctx, requestID, SenderRole(party), senderName, text)
}

func (s *Service) GetConversation(ctx context.Context, requestID string) ([]Message, error) {
	return s.repo.ListMessages(ctx, requestID)
}

// RequestCall asks the other party for a video call. If the other party
// already asked, this approves their request instead.
func (s *Service) RequestCall(ctx context.Context, id string, actor Actor) (CallView, error) {
	return s.callOp(ctx, id, actor, "call requested", func(req *Request, p Party) error {
		return planRequestCall(ctx, req, p, s.minter)
	})
}

func (s *Service) ApproveCall(ctx context.Context, id string, actor Actor) (CallView, error) {
	return s.callOp(ctx, id, actor, "call approved", func(req *Request, p Party) error {
		return planApproveCall(ctx, req, p, s.minter)
	})
}

// ResetCall clears the handshake so a new request/approve cycle can start.
func (s *Service) ResetCall(ctx context.Context, id string, actor Actor) (CallView, error) {
	return s.callOp(ctx, id, actor, "call reset", func(req *Request, _ Party) error {
		planResetCall(req)
		return nil
	})
}

func (s *Service) GetCallState(ctx context.Context, id string) (CallView, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return CallView{}, err
	}
	return callViewOf(req), nil
}

func (s *Service) callOp(ctx context.Context, id string, actor Actor, event string, op func(req *Request, p Party) error) (CallView, error) {
	req, err := s.repo.MutateRequest(ctx, id, func(req *Request, now time.Time) ([]Effect, error) {
		p, ok := req.partyOf(actor)
		if !ok {
			return nil, ErrUnauthorized
		}
		return nil, op(req, p)
	})
	if err != nil {
		return CallView{}, err
	}
	view := callViewOf(req)
	s.log.Info(event,
		zap.String("request_id", id),
		zap.String("actor", actor.ID),
		zap.String("state", string(view.State)))
	return view, nil
}

// NewProfessional is an onboarding application.
type NewProfessional struct {
	FullName          string
	Email             string
	PhoneNumber       string
	TradeCategory     string
	YearsOfExperience int
	HourlyRate        float64
	ServiceArea       string
	Bio               string
}

// RegisterProfessional files an application for id. The professional stays
// pending and unavailable until an admin approves it.
func (s *Service) RegisterProfessional(ctx context.Context, id string, in NewProfessional) (*Professional, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.TradeCategory) == "" {
		return nil, fmt.Errorf("%w: trade category is required", ErrInvalidInput)
	}
	if in.HourlyRate < 0 {
		return nil, fmt.Errorf("%w: hourly rate must not be negative", ErrInvalidInput)
	}
	if in.YearsOfExperience < 0 {
		return nil, fmt.Errorf("%w: years of experience must not be negative", ErrInvalidInput)
	}
	p := &Professional{
		ID:                id,
		FullName:          strings.TrimSpace(in.FullName),
		Email:             in.Email,
		PhoneNumber:       in.PhoneNumber,
		TradeCategory:     in.TradeCategory,
		YearsOfExperience: in.YearsOfExperience,
		HourlyRate:        in.HourlyRate,
		ServiceArea:       in.ServiceArea,
		Bio:               in.Bio,
		IsAvailable:       false,
		ApplicationStatus: ApplicationPending,
		AppliedAt:         s.repo.now(),
	}
	if err := s.repo.CreateProfessional(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("professional application submitted",
		zap.String("professional_id", id),
		zap.String("trade", p.TradeCategory))
	return p, nil
}

func (s *Service) GetProfessional(ctx context.Context, id string) (*Professional, error) {
	return s.repo.GetProfessional(ctx, id)
}

func (s *Service) SetAvailability(ctx context.Context, id string, available bool) error {
	return s.repo.SetAvailability(ctx, id, available)
}

// ReviewApplication approves or rejects an application. A decision can be
// revised later; rejecting an approved professional takes them off the board.
func (s *Service) ReviewApplication(ctx context.Context, id string, reviewerID string, status ApplicationStatus, notes string) (*Professional, error) {
	if status != ApplicationApproved && status != ApplicationRejected {
		return nil, ErrInvalidReview
	}
	var n *string
	if strings.TrimSpace(notes) != "" {
		n = &notes
	}
	p, err := s.repo.ReviewApplication(ctx, id, status, reviewerID, n)
	if err != nil {
		return nil, err
	}
	s.log.Info("professional application reviewed",
		zap.String("professional_id", id),
		zap.String("reviewer", reviewerID),
		zap.String("status", string(status)))
	return p, nil
}

func (s *Service) ListPendingApplications(ctx context.Context) ([]Professional, error) {
	return s.repo.ListProfessionals(ctx, ApplicationPending)
}

func (s *Service) ListApprovedProfessionals(ctx context.Context) ([]Professional, error) {
	return s.repo.ListProfessionals(ctx, ApplicationApproved)
}

func (s *Service) ListAvailableByTrade(ctx context.Context, trade string) ([]Professional, error) {
	return s.repo.ListAvailableByTrade(ctx, trade)
}

// ProfileUpdate holds the self-editable profile fields; nil leaves a field
// unchanged.
type ProfileUpdate struct {
	Bio          *string
	HourlyRate   *float64
	ServiceArea  *string
	ProfilePhoto *string
}

func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*Professional, error) {
	cols := map[string]any{}
	if in.Bio != nil {
		cols["bio"] = *in.Bio
	}
	if in.HourlyRate != nil {
		if *in.HourlyRate < 0 {
			return nil, fmt.Errorf("%w: hourly rate must not be negative", ErrInvalidInput)
		}
		cols["hourly_rate"] = *in.HourlyRate
	}
	if in.ServiceArea != nil {
		cols["service_area"] = *in.ServiceArea
	}
	if in.ProfilePhoto != nil {
		cols["profile_photo"] = *in.ProfilePhoto
	}
	if len(cols) > 0 {
		if err := s.repo.UpdateProfile(ctx, id, cols); err != nil {
			return nil, err
		}
	}
	return s.repo.GetProfessional(ctx, id)
}
