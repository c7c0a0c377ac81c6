package session

import (
	"errors"
	"strings"
	"testing"
)

func TestValidID(t *testing.T) {
	valid := []string{"a", "abc-DEF_123", "_", "-", strings.Repeat("x", MaxIDLength)}
	invalid := []string{"", "a.b", "a/b", `a\b`, "a b", "é", "a\n", "..", strings.Repeat("x", MaxIDLength+1)}

	for _, id := range valid {
		if !ValidID(id) {
			t.Errorf("ValidID(%q) = false", id)
		}
		if err := CheckID(id); err != nil {
			t.Errorf("CheckID(%q) = %v", id, err)
		}
	}
	for _, id := range invalid {
		if ValidID(id) {
			t.Errorf("ValidID(%q) = true", id)
		}
		if err := CheckID(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("CheckID(%q) = %v, want ErrInvalidID", id, err)
		}
	}
}
