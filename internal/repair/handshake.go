package repair

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type CallState string

const (
	CallNone      CallState = "none"
	CallRequested CallState = "requested"
	CallApproved  CallState = "approved"
)

// CallView is what either party's UI needs to pick between
// "request", "waiting for approval", "approve" and "join".
type CallView struct {
	State       CallState `json:"state"`
	RequestedBy *Party    `json:"requested_by,omitempty"`
	Reference   string    `json:"reference,omitempty"`
}

func callViewOf(r *Request) CallView {
	switch {
	case r.CallApproved && r.CallReference != nil:
		return CallView{State: CallApproved, RequestedBy: r.CallRequestedBy, Reference: *r.CallReference}
	case r.CallRequested:
		return CallView{State: CallRequested, RequestedBy: r.CallRequestedBy}
	default:
		return CallView{State: CallNone}
	}
}

// LinkMinter produces a fresh joinable call reference.
type LinkMinter interface {
	MintCallLink(ctx context.Context, requestID string) (string, error)
}

// UUIDLinkMinter appends a random UUID to BaseURL. It stands in for a real
// conferencing provider.
type UUIDLinkMinter struct {
	BaseURL string
}

func (m UUIDLinkMinter) MintCallLink(_ context.Context, _ string) (string, error) {
	base := strings.TrimSpace(m.BaseURL)
	if base == "" {
		base = "https://meet.jit.si/fixo-"
	}
	return base + uuid.NewString(), nil
}

// planRequestCall records a call request by party. A request arriving while
// the other party's request is pending is treated as that party's approval.
func planRequestCall(ctx context.Context, r *Request, by Party, minter LinkMinter) error {
	if r.CallApproved {
		// already joinable; a new cycle needs an explicit reset
		return nil
	}
	if r.CallRequested && r.CallRequestedBy != nil && *r.CallRequestedBy != by {
		return planApproveCall(ctx, r, by, minter)
	}
	p := by
	r.CallRequested = true
	r.CallRequestedBy = &p
	r.CallApproved = false
	r.CallReference = nil
	return nil
}

func planApproveCall(ctx context.Context, r *Request, by Party, minter LinkMinter) error {
	if !r.CallRequested || r.CallRequestedBy == nil {
		return ErrNoPendingRequest
	}
	if *r.CallRequestedBy == by {
		return ErrSelfApproval
	}
	if r.CallApproved {
		return nil
	}
	ref, err := minter.MintCallLink(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("mint call link: %w", err)
	}
	if ref == "" {
		return fmt.Errorf("mint call link: empty reference")
	}
	r.CallApproved = true
	r.CallReference = &ref
	return nil
}

func planResetCall(r *Request) {
	r.CallRequested = false
	r.CallRequestedBy = nil
	r.CallApproved = false
	r.CallReference = nil
}
