package metadata

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildStandardLabels(t *testing.T) {
	t.Parallel()

	got := BuildStandardLabels("movies", "server")
	want := map[string]string{
		"app.kubernetes.io/name":       "jellyfin",
		"app.kubernetes.io/instance":   "movies",
		"app.kubernetes.io/component":  "server",
		"app.kubernetes.io/part-of":    "jellyfin",
		"app.kubernetes.io/managed-by": "jellyfin-operator",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildStandardLabels() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeLabels(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		standard map[string]string
		custom   map[string]string
		want     map[string]string
	}{
		"custom labels are added": {
			standard: map[string]string{"app.kubernetes.io/name": "jellyfin"},
			custom:   map[string]string{"team": "media"},
			want: map[string]string{
				"app.kubernetes.io/name": "jellyfin",
				"team":                   "media",
			},
		},
		"standard labels win on conflict": {
			standard: map[string]string{"app.kubernetes.io/name": "jellyfin"},
			custom:   map[string]string{"app.kubernetes.io/name": "spoofed"},
			want:     map[string]string{"app.kubernetes.io/name": "jellyfin"},
		},
		"nil custom labels": {
			standard: map[string]string{"app.kubernetes.io/name": "jellyfin"},
			custom:   nil,
			want:     map[string]string{"app.kubernetes.io/name": "jellyfin"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := MergeLabels(tc.standard, tc.custom)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("MergeLabels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
