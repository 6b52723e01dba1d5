package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/suPer8Hu/fixo/internal/ai"
)

// Kind is the closed set of ways a generation job can fail.
type Kind string

const (
	KindSubmission          Kind = "submission_error"
	KindAuth                Kind = "auth_error"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindSafetyFiltered      Kind = "safety_filtered"
	KindTimeout             Kind = "timeout"
	KindProviderFailure     Kind = "provider_failure"
	KindCancelled           Kind = "cancelled"
)

// Error is the terminal failure of one job invocation.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a generation failure, or "" if err is not one.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// UserMessage is the guidance shown to the person who asked for the video.
func UserMessage(k Kind) string {
	switch k {
	case KindSubmission:
		return "The video service rejected the request. Please rephrase the problem and try again."
	case KindAuth:
		return "The video service is not configured correctly. Please contact support."
	case KindQuotaExceeded:
		return "Video generation is temporarily over its usage limit. Please try again later."
	case KindProviderUnavailable:
		return "Video generation is not available for this account right now."
	case KindSafetyFiltered:
		return "The generated video was blocked by the content safety filter. Try describing the repair without people."
	case KindTimeout:
		return "Video generation took too long. Please try again."
	case KindProviderFailure:
		return "The video service failed to produce a video. Please try again."
	case KindCancelled:
		return "Video generation was cancelled."
	}
	return "Video generation failed."
}

type phase int

const (
	phaseSubmit phase = iota
	phasePoll
)

// classify maps a transport error from a provider call onto a Kind.
func classify(err error, ph phase) *Error {
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCancelled, Err: err}
	}

	generic := KindSubmission
	if ph == phasePoll {
		generic = KindProviderFailure
	}

	var he *ai.HTTPError
	if !errors.As(err, &he) {
		return &Error{Kind: generic, Err: err}
	}

	// Veo reports bad keys and gated models as 400 with a descriptive
	// message, so the message is checked alongside the status.
	msg := strings.ToLower(he.Message)
	switch {
	case he.StatusCode == http.StatusTooManyRequests || strings.Contains(msg, "quota"):
		return &Error{Kind: KindQuotaExceeded, Reason: he.Message, Err: err}
	case he.StatusCode == http.StatusNotFound || strings.Contains(msg, "not found"):
		return &Error{Kind: KindProviderUnavailable, Reason: he.Message, Err: err}
	case he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden ||
		strings.Contains(msg, "api key"):
		return &Error{Kind: KindAuth, Reason: he.Message, Err: err}
	}
	return &Error{Kind: generic, Reason: he.Message, Err: err}
}
