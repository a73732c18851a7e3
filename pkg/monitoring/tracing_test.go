package monitoring

import (
	"errors"
	"testing"
)

func TestStartReconcileSpan(t *testing.T) {
	t.Parallel()

	ctx, span := StartReconcileSpan(t.Context(), "Reconcile", "movies", "default", "JellyfinServer")
	defer span.End()

	if ctx == nil {
		t.Fatal("expected a context")
	}

	// With no TracerProvider registered the span is a noop; recording an
	// error must not panic.
	RecordSpanError(span, errors.New("boom"))
	RecordSpanError(span, nil)
}

func TestStartChildSpan(t *testing.T) {
	t.Parallel()

	_, span := StartChildSpan(t.Context(), "PatchPorts")
	span.End()
}
