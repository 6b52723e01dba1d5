package repair

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusLogged     Status = "logged"
	StatusInAnalysis Status = "in-analysis"
	StatusFixing     Status = "fixing"
	StatusCompleted  Status = "completed"
)

// nextStatus is the whole lattice: one forward step per state, nothing after completed.
var nextStatus = map[Status]Status{
	StatusLogged:     StatusInAnalysis,
	StatusInAnalysis: StatusFixing,
	StatusFixing:     StatusCompleted,
}

func (s Status) Valid() bool {
	switch s {
	case StatusLogged, StatusInAnalysis, StatusFixing, StatusCompleted:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusCompleted }

// Next returns the single forward successor of s.
func (s Status) Next() (Status, bool) {
	n, ok := nextStatus[s]
	return n, ok
}

type EffectKind string

const (
	EffectJobAccepted  EffectKind = "job_accepted"
	EffectJobCompleted EffectKind = "job_completed"
	EffectJobRated     EffectKind = "job_rated"
)

// Effect is a professional stats update produced by a request mutation.
// The repository applies effects in the same transaction as the request write.
type Effect struct {
	Kind           EffectKind
	ProfessionalID string
	Stars          int
}

// Transition is the outcome of a status change on a request.
type Transition struct {
	From    Status
	To      Status
	Effects []Effect
}

// planAdvance moves r one step forward on behalf of a participant.
func planAdvance(r *Request, actor Actor) (Transition, error) {
	if _, ok := r.partyOf(actor); !ok {
		return Transition{}, ErrUnauthorized
	}
	next, ok := r.Status.Next()
	if !ok {
		return Transition{}, fmt.Errorf("%w: request is %s", ErrInvalidState, r.Status)
	}
	return applyStatus(r, next)
}

// planSetStatus moves r to target on behalf of the bound professional.
// target must be exactly one step ahead of the current status.
func planSetStatus(r *Request, actor Actor, target Status) (Transition, error) {
	if p, ok := r.partyOf(actor); !ok || p != PartyProfessional {
		return Transition{}, ErrUnauthorized
	}
	if !target.Valid() {
		return Transition{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	next, ok := r.Status.Next()
	if !ok || next != target {
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, target)
	}
	return applyStatus(r, target)
}

func applyStatus(r *Request, to Status) (Transition, error) {
	// work cannot start before somebody owns it
	if to != StatusInAnalysis && !r.Assigned() {
		return Transition{}, fmt.Errorf("%w: %s requires an assigned professional", ErrInvalidTransition, to)
	}
	t := Transition{From: r.Status, To: to}
	r.Status = to
	if to == StatusCompleted && r.ProfessionalID != nil {
		t.Effects = append(t.Effects, Effect{Kind: EffectJobCompleted, ProfessionalID: *r.ProfessionalID})
	}
	return t, nil
}

// planAccept binds professionalID to r. It is the only place ProfessionalID is written.
func planAccept(r *Request, professionalID string, now time.Time) (Transition, error) {
	if r.Assigned() {
		return Transition{}, ErrAlreadyAssigned
	}
	if r.Status.Terminal() {
		return Transition{}, fmt.Errorf("%w: request is %s", ErrInvalidState, r.Status)
	}
	pid := professionalID
	at := now
	r.ProfessionalID = &pid
	r.ProfessionalAssignedAt = &at

	t := Transition{From: r.Status, To: r.Status}
	if r.Status == StatusLogged {
		r.Status = StatusInAnalysis
		t.To = StatusInAnalysis
	}
	t.Effects = append(t.Effects, Effect{Kind: EffectJobAccepted, ProfessionalID: pid})
	return t, nil
}

// planRate records the requester's stars for a completed request.
func planRate(r *Request, actor Actor, stars int) (Transition, error) {
	if p, ok := r.partyOf(actor); !ok || p != PartyRequester {
		return Transition{}, ErrUnauthorized
	}
	if stars < 1 || stars > 5 {
		return Transition{}, ErrInvalidRating
	}
	if !r.Status.Terminal() || r.ProfessionalID == nil {
		return Transition{}, fmt.Errorf("%w: only completed requests can be rated", ErrInvalidState)
	}
	if r.Rating != nil {
		return Transition{}, ErrAlreadyRated
	}
	s := stars
	r.Rating = &s
	return Transition{
		From:    r.Status,
		To:      r.Status,
		Effects: []Effect{{Kind: EffectJobRated, ProfessionalID: *r.ProfessionalID, Stars: stars}},
	}, nil
}
