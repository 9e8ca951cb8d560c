package client

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/furisto/console/delta"
)

func TestApplyAppendsNewData(t *testing.T) {
	m := Mirror{Version: 0, Start: 0, Data: []byte("abc")}

	progress := m.Apply(delta.Response{Version: 0, Start: 0, Begin: 3, Part: []byte("def")})

	if !progress {
		t.Error("Apply() = false, want progress")
	}
	if diff := cmp.Diff(Mirror{Version: 0, Start: 0, Data: []byte("abcdef")}, m); diff != "" {
		t.Errorf("mirror mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyTrimsOverlappingPart(t *testing.T) {
	m := Mirror{Version: 0, Start: 0, Data: []byte("abc")}

	progress := m.Apply(delta.Response{Version: 0, Start: 0, Begin: 1, Part: []byte("bcde")})

	if !progress {
		t.Error("Apply() = false, want progress")
	}
	if got := string(m.Data); got != "abcde" {
		t.Errorf("data = %q, want %q (overlap must not duplicate)", got, "abcde")
	}
}

func TestApplyRedundantResponse(t *testing.T) {
	m := Mirror{Version: 0, Start: 0, Data: []byte("abcdef")}

	progress := m.Apply(delta.Response{Version: 0, Start: 0, Begin: 2, Part: []byte("cd")})

	if progress {
		t.Error("Apply() = true for fully redundant response, want false")
	}
	if got := string(m.Data); got != "abcdef" {
		t.Errorf("data = %q, want unchanged", got)
	}
}

func TestApplyGapDiscarded(t *testing.T) {
	m := Mirror{Version: 0, Start: 0, Data: []byte("abc")}

	progress := m.Apply(delta.Response{Version: 0, Start: 0, Begin: 7, Part: []byte("xyz")})

	if progress {
		t.Error("Apply() = true for gapped response, want false")
	}
	if got := string(m.Data); got != "abc" {
		t.Errorf("data = %q, want mirror untouched by gapped response", got)
	}
}

// TestApplyServerEviction is the partial-overlap scenario: the client cached
// [2, 12) but the server has since evicted up to offset 5 and answers with a
// window that is entirely redundant after the trim.
func TestApplyServerEviction(t *testing.T) {
	m := Mirror{Version: 0, Start: 2, Data: []byte("cdefghijKL")}

	progress := m.Apply(delta.Response{Version: 0, Start: 5, Begin: 5, Part: []byte("fghijKL")})

	if !progress {
		t.Error("Apply() = false, want progress from the eviction trim")
	}
	if diff := cmp.Diff(Mirror{Version: 0, Start: 5, Data: []byte("fghijKL")}, m); diff != "" {
		t.Errorf("mirror mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyEvictionBeyondCache(t *testing.T) {
	m := Mirror{Version: 0, Start: 0, Data: []byte("ab")}

	progress := m.Apply(delta.Response{Version: 0, Start: 10, Begin: 10, Part: []byte("klm")})

	if !progress {
		t.Error("Apply() = false, want progress")
	}
	if diff := cmp.Diff(Mirror{Version: 0, Start: 10, Data: []byte("klm")}, m); diff != "" {
		t.Errorf("mirror mismatch (-want +got):\n%s", diff)
	}
}

// TestApplyNewVersion covers a reset: the response carries a higher version
// anchored at the new epoch's origin and replaces the mirror wholesale.
func TestApplyNewVersion(t *testing.T) {
	m := Mirror{Version: 3, Start: 40, Data: []byte("old tail")}

	progress := m.Apply(delta.Response{Version: 4, Start: 0, Begin: 0, Part: []byte("fresh")})

	if !progress {
		t.Error("Apply() = false, want progress")
	}
	if diff := cmp.Diff(Mirror{Version: 4, Start: 0, Data: []byte("fresh")}, m); diff != "" {
		t.Errorf("mirror mismatch (-want +got):\n%s", diff)
	}
}

// TestApplyNewVersionMidEpoch covers the orphaned-fragment case: a response
// from a newer version that does not begin at the epoch origin cannot be
// anchored and must be discarded.
func TestApplyNewVersionMidEpoch(t *testing.T) {
	m := Mirror{Version: 3, Start: 40, Data: []byte("old tail")}

	progress := m.Apply(delta.Response{Version: 4, Start: 0, Begin: 17, Part: []byte("frag")})

	if progress {
		t.Error("Apply() = true, want mid-epoch response discarded")
	}
	if diff := cmp.Diff(Mirror{Version: 3, Start: 40, Data: []byte("old tail")}, m); diff != "" {
		t.Errorf("mirror mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyStaleVersion(t *testing.T) {
	m := Mirror{Version: 5, Start: 0, Data: []byte("current")}

	progress := m.Apply(delta.Response{Version: 4, Start: 0, Begin: 0, Part: []byte("stale")})

	if progress {
		t.Error("Apply() = true for stale version, want false")
	}
	if got := string(m.Data); got != "current" {
		t.Errorf("data = %q, want unchanged", got)
	}
}

func TestApplyInvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		resp delta.Response
	}{
		{"negative version", delta.Response{Version: -1, Start: 0, Begin: 0}},
		{"negative start", delta.Response{Version: 0, Start: -2, Begin: 0}},
		{"negative begin", delta.Response{Version: 0, Start: 0, Begin: -1}},
		{"begin before start", delta.Response{Version: 0, Start: 5, Begin: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Mirror{Version: 0, Start: 0, Data: []byte("keep")}
			if m.Apply(tt.resp) {
				t.Error("Apply() = true for invalid response, want false")
			}
			if got := string(m.Data); got != "keep" {
				t.Errorf("data = %q, want unchanged", got)
			}
		})
	}
}
