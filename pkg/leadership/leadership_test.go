package leadership

import "testing"

func TestFromElected(t *testing.T) {
	t.Parallel()

	elected := make(chan struct{})
	check := FromElected(elected)

	if check() {
		t.Error("Checker reported leadership before election")
	}

	close(elected)
	if !check() {
		t.Error("Checker should report leadership after election")
	}
}

func TestAlwaysAndNever(t *testing.T) {
	t.Parallel()

	if !Always()() {
		t.Error("Always() should report leadership")
	}
	if Never()() {
		t.Error("Never() should not report leadership")
	}
}
