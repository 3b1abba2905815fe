package onboarding

import (
	"fmt"
	"net/http"
)

// Outcome classifies how a request ended.
type Outcome string

const (
	OutcomeRedirected         Outcome = "redirected"
	OutcomeOnboarded          Outcome = "onboarded"
	OutcomeMissingParameters  Outcome = "missing_parameters"
	OutcomeTimedOut           Outcome = "timed_out"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	OutcomeMalformedResponse  Outcome = "malformed_response"
	OutcomeMissingBotScope    Outcome = "missing_bot_scope"
	OutcomeOversubscribed     Outcome = "oversubscribed"
)

// Result is the caller-visible response of Initiate or Onboard.
// Exactly one of Location (redirects) or Message is set.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Message    string
	Location   string

	// Set once the workspace is known.
	WorkspaceID string
	Shard       int
}

// Rejected reports whether the request ended before the workspace was onboarded.
func (r *Result) Rejected() bool {
	return r.Outcome != OutcomeOnboarded && r.Outcome != OutcomeRedirected
}

func redirect(location string) *Result {
	return &Result{
		Outcome:    OutcomeRedirected,
		StatusCode: http.StatusFound,
		Location:   location,
	}
}

func reject(outcome Outcome, productName string) *Result {
	res := &Result{Outcome: outcome}

	switch outcome {
	case OutcomeMissingParameters:
		res.StatusCode = http.StatusOK
		res.Message = "Missing code or state parameters"
	case OutcomeTimedOut:
		res.StatusCode = http.StatusBadRequest
		res.Message = "Onboarding flow has timed out, please authenticate again"
	case OutcomeInvalidCredentials:
		res.StatusCode = http.StatusInternalServerError
		res.Message = "Provided Slack credentials are invalid"
	case OutcomeMalformedResponse:
		res.StatusCode = http.StatusInternalServerError
		res.Message = "Slack response wasn't valid"
	case OutcomeMissingBotScope:
		res.StatusCode = http.StatusInternalServerError
		res.Message = "Slack response missing the bot scope"
	case OutcomeOversubscribed:
		res.StatusCode = http.StatusOK
		res.Message = fmt.Sprintf("%s is currently oversubscribed, please try again later, sorry!", productName)
	default:
		res.StatusCode = http.StatusInternalServerError
		res.Message = "Internal server error"
	}

	return res
}

// MissingParameters is the result for an /onboard call without code or state.
func MissingParameters() *Result {
	return reject(OutcomeMissingParameters, "")
}
