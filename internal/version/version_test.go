package version

import (
	"strings"
	"testing"
)

func TestShortCommit(t *testing.T) {
	tests := []struct {
		revision string
		dirty    bool
		want     string
	}{
		{"", false, ""},
		{"abc", false, "abc"},
		{"0123456789abcdef", false, "0123456"},
		{"0123456789abcdef", true, "0123456-dirty"},
	}
	for _, tt := range tests {
		if got := shortCommit(tt.revision, tt.dirty); got != tt.want {
			t.Errorf("shortCommit(%q, %v) = %q, want %q", tt.revision, tt.dirty, got, tt.want)
		}
	}
}

func TestFull(t *testing.T) {
	if Version == "" || Commit == "" {
		t.Fatal("init left Version or Commit empty")
	}
	if !strings.Contains(Full(), Version) || !strings.Contains(Full(), Commit) {
		t.Errorf("Full() = %q", Full())
	}
}
