package workload

// Kind is the coarse outcome of a convergence pass.
type Kind string

const (
	// KindActive means the desired layer is applied and the service runs.
	KindActive Kind = "active"

	// KindBlocked means the pass failed in a way that needs attention.
	KindBlocked Kind = "blocked"

	// KindWaiting means the supervisor was unreachable; the pass is
	// retried on the next notification.
	KindWaiting Kind = "waiting"
)

// Status is the three-valued outcome surfaced to the platform's status
// display.
type Status struct {
	Kind   Kind
	Reason string
}

// Active returns the status for a fully converged pass.
func Active() Status {
	return Status{Kind: KindActive}
}

// Blocked returns a blocked status with an operator-facing reason.
func Blocked(reason string) Status {
	return Status{Kind: KindBlocked, Reason: reason}
}

// Waiting returns a waiting status with an operator-facing reason.
func Waiting(reason string) Status {
	return Status{Kind: KindWaiting, Reason: reason}
}
