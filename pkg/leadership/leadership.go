// Package leadership abstracts the platform's leader-election primitive
// into a capability check evaluated before cluster-wide mutating actions.
package leadership

// Checker reports whether this replica currently holds leadership. Only
// the leader may perform single-writer actions such as patching shared
// cluster objects.
type Checker func() bool

// FromElected adapts a controller-runtime manager's Elected channel into
// a non-blocking Checker.
func FromElected(elected <-chan struct{}) Checker {
	return func() bool {
		select {
		case <-elected:
			return true
		default:
			return false
		}
	}
}

// Always reports leadership unconditionally, for single-replica
// deployments and tests.
func Always() Checker {
	return func() bool { return true }
}

// Never denies leadership unconditionally, for tests.
func Never() Checker {
	return func() bool { return false }
}
