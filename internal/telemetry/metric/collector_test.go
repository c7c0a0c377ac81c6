package metric

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDirCollector(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"sess_a.json": "12345",
		"sess_b.json": "123",
		"sess_.json":  "x",
		"notes.txt":   "ignored",
	}
	files[".sess_a.json.01ARZ3NDEKTSV4RRFFQ69G5FAV.tmp"] = "partial"
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sess_d.json"), 0750); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	c := NewDirCollector(dir, "sess_", ".json")
	want := `
# HELP sessfile_dir_session_bytes Total size of session files in the directory.
# TYPE sessfile_dir_session_bytes gauge
sessfile_dir_session_bytes{dir="` + dir + `"} 8
# HELP sessfile_dir_session_files Session files currently in the directory.
# TYPE sessfile_dir_session_files gauge
sessfile_dir_session_files{dir="` + dir + `"} 2
# HELP sessfile_dir_temp_files Temporary files left in the directory.
# TYPE sessfile_dir_temp_files gauge
sessfile_dir_temp_files{dir="` + dir + `"} 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want),
		"sessfile_dir_session_bytes", "sessfile_dir_session_files", "sessfile_dir_temp_files"); err != nil {
		t.Fatal(err)
	}
}

func TestDirCollector_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")
	c := NewDirCollector(dir, "", "")

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(c)
	n, err := testutil.GatherAndCount(reg, "sessfile_dir_scrape_error")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("scrape_error series = %d, want 1", n)
	}
	if got := testutil.CollectAndCount(c, "sessfile_dir_session_files"); got != 0 {
		t.Errorf("session_files reported for missing dir: %d", got)
	}
}
