package filestore

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/sessfile-go/pkg/session"
)

func TestResolver_Path(t *testing.T) {
	dir := filepath.Join(string(filepath.Separator)+"tmp", "s")
	r := NewResolver(dir, "sess_", ".json")

	got, err := r.Path("abc-123_X")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if want := filepath.Join(dir, "sess_abc-123_X.json"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if filepath.Dir(got) != dir {
		t.Errorf("parent of %q is not %q", got, dir)
	}
}

func TestResolver_RejectsUnsafeIDs(t *testing.T) {
	r := NewResolver(t.TempDir(), "", "")

	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"traversal", "../../etc/passwd"},
		{"dot", "."},
		{"dotdot", ".."},
		{"slash", "a/b"},
		{"backslash", `a\b`},
		{"dot inside", "a.b"},
		{"leading dot", ".hidden"},
		{"nul", "a\x00b"},
		{"space", "a b"},
		{"unicode", "sessión"},
		{"absolute", "/etc/passwd"},
		{"too long", strings.Repeat("a", maxNameLen)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Path(tt.id); !errors.Is(err, session.ErrInvalidID) {
				t.Fatalf("Path(%q) err = %v, want ErrInvalidID", tt.id, err)
			}
		})
	}
}

func TestResolver_LengthLimitCountsAffixes(t *testing.T) {
	prefix := strings.Repeat("p", 40)
	r := NewResolver(t.TempDir(), prefix, ".json")
	longest := maxNameLen - tempOverhead - len(prefix) - len(".json")

	if _, err := r.Path(strings.Repeat("a", longest)); err != nil {
		t.Fatalf("Path(longest) err = %v", err)
	}
	if _, err := r.Path(strings.Repeat("a", longest+1)); !errors.Is(err, session.ErrInvalidID) {
		t.Fatalf("Path(longest+1) err = %v, want ErrInvalidID", err)
	}
}

func TestResolver_IDFromName(t *testing.T) {
	r := NewResolver(t.TempDir(), "sess_", ".json")

	tests := []struct {
		name   string
		wantID string
		wantOK bool
	}{
		{"sess_abc.json", "abc", true},
		{"sess_a-b_C.json", "a-b_C", true},
		{"sess_.json", "", false},
		{"abc.json", "", false},
		{"sess_abc.txt", "", false},
		{"sess_a.b.json", "", false},
		{".sess_abc.json.01ARZ3NDEKTSV4RRFFQ69G5FAV.tmp", "", false},
		{"notes", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := r.IDFromName(tt.name)
			if ok != tt.wantOK || id != tt.wantID {
				t.Fatalf("IDFromName(%q) = %q, %v; want %q, %v", tt.name, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestResolver_RoundTrip(t *testing.T) {
	r := NewResolver(t.TempDir(), "", "")
	for _, id := range []string{"a", "Z9", "CI4afkzk6tVMRb50lMyZAA", "-_-"} {
		p, err := r.Path(id)
		if err != nil {
			t.Fatalf("Path(%q): %v", id, err)
		}
		got, ok := r.IDFromName(filepath.Base(p))
		if !ok || got != id {
			t.Errorf("IDFromName(Base(Path(%q))) = %q, %v", id, got, ok)
		}
	}
}
