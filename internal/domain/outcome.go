package domain

// PaymentOutcome is the normalized result of a gateway call. Exactly one
// variant is returned per attempt; the orchestrator switches exhaustively on
// the concrete type instead of inspecting provider fields ad hoc.
type PaymentOutcome interface {
	outcome()
}

// OutcomeSucceeded means the charge was captured
type OutcomeSucceeded struct {
	ProviderRef string
	Raw         map[string]interface{}
}

// OutcomeRequiresAction means the provider needs a client-side step (3-D
// Secure). The flow suspends; ClientSecret is surfaced to the caller.
type OutcomeRequiresAction struct {
	ClientSecret string
	Raw          map[string]interface{}
}

// OutcomeDeclined means the provider explicitly refused the charge
type OutcomeDeclined struct {
	Reason string
	Raw    map[string]interface{}
}

// OutcomeTransient means the attempt failed for a retriable cause (network,
// 5xx) without a definitive provider decision.
type OutcomeTransient struct {
	Cause error
}

func (OutcomeSucceeded) outcome()      {}
func (OutcomeRequiresAction) outcome() {}
func (OutcomeDeclined) outcome()       {}
func (OutcomeTransient) outcome()      {}
