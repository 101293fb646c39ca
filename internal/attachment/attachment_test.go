package attachment

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// TestPath_ScenarioE tests the documented upload path example
func TestPath_ScenarioE(t *testing.T) {
	b := NewPathBuilder("recruitment")
	got := b.Path(PathInput{
		RegistrationNo: "24000001",
		SubheadingID:   10,
		ScoreFieldID:   20,
		ParameterID:    30,
		RowIndex:       0,
		OriginalName:   "My File (1).pdf",
	})

	want := "recruitment/24000001/24000001_10_20_30_0_My_File_1_.pdf"
	if got != want {
		t.Errorf("Expected path %s, got %s", want, got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "Already safe", input: "report-2024.v2.pdf", want: "report-2024.v2.pdf"},
		{name: "Spaces and parentheses", input: "My File (1).pdf", want: "My_File_1_.pdf"},
		{name: "Leading and trailing junk", input: "  __cv__  ", want: "cv"},
		{name: "Non-ASCII", input: "José González.pdf", want: "Jos_Gonz_lez.pdf"},
		{name: "Path separators", input: "../../etc/passwd", want: ".._.._etc_passwd"},
		{name: "Nothing left", input: "###", want: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func key(sub int64, row int, param int64) models.ValueKey {
	return models.ValueKey{RecordKey: models.RecordKey{SubheadingID: sub, RowIndex: row}, ParameterID: param}
}

func TestTracker_PendingAndStoredAreExclusive(t *testing.T) {
	tr := NewTracker()
	k := key(10, 0, 30)

	tr.MarkStored(k, "recruitment/1/old.pdf")
	tr.Attach(k, models.FileHandle{Name: "new.pdf", Data: []byte("new")})

	a := tr.Get(k)
	if !a.IsPending() || a.IsStored() {
		t.Fatalf("Expected pending-only attachment, got %+v", a)
	}

	tr.Withdraw(k)
	a = tr.Get(k)
	if !a.IsStored() || a.StoredPath() != "recruitment/1/old.pdf" {
		t.Errorf("Expected stored path to be restored, got %+v", a)
	}

	tr.MarkStored(k, "recruitment/1/newer.pdf")
	if got := tr.Get(k); got.IsPending() || got.StoredPath() != "recruitment/1/newer.pdf" {
		t.Errorf("Expected stored-only attachment, got %+v", got)
	}
}

func TestTracker_WithdrawWithoutStoredClears(t *testing.T) {
	tr := NewTracker()
	k := key(1, 0, 2)
	tr.Attach(k, models.FileHandle{Name: "a.pdf"})
	tr.Withdraw(k)
	if tr.Satisfied(k) {
		t.Error("Expected slot to be empty after withdrawing its only upload")
	}
}

func TestTracker_ReleaseRows(t *testing.T) {
	tr := NewTracker()
	tr.MarkStored(key(10, 0, 30), "p0")
	tr.MarkStored(key(10, 1, 30), "p1")
	tr.MarkStored(key(10, 2, 30), "p2")
	tr.MarkStored(key(11, 2, 30), "other")
	tr.Attach(key(10, 3, 30), models.FileHandle{Name: "pending.pdf"})

	released := tr.ReleaseRows(10, 1)
	if !reflect.DeepEqual(released, []string{"p1", "p2"}) {
		t.Errorf("Expected [p1 p2] released, got %v", released)
	}
	if !tr.Satisfied(key(10, 0, 30)) {
		t.Error("Expected row 0 to survive")
	}
	if tr.Satisfied(key(10, 3, 30)) {
		t.Error("Expected pending upload on a removed row to be dropped")
	}
	if !tr.Satisfied(key(11, 2, 30)) {
		t.Error("Expected other subheading to be untouched")
	}
}

func TestTracker_PromoteOnlyMatchingUpload(t *testing.T) {
	tr := NewTracker()
	k := key(10, 0, 30)

	tr.Attach(k, models.FileHandle{Name: "old.pdf"})
	first := tr.PendingSeq(k)
	tr.Attach(k, models.FileHandle{Name: "new.pdf"})
	second := tr.PendingSeq(k)
	if first == 0 || first == second {
		t.Fatalf("Expected distinct non-zero sequences, got %d and %d", first, second)
	}

	if tr.Promote(k, first, "recruitment/old.pdf") {
		t.Error("Expected stale upload not to be promoted")
	}
	if !tr.Get(k).IsPending() || tr.Get(k).Pending().Name != "new.pdf" {
		t.Error("Expected newer upload to stay pending")
	}

	if !tr.Promote(k, second, "recruitment/new.pdf") {
		t.Fatal("Expected current upload to be promoted")
	}
	if got := tr.Get(k).StoredPath(); got != "recruitment/new.pdf" {
		t.Errorf("Expected stored path recruitment/new.pdf, got %s", got)
	}
	if tr.PendingSeq(k) != 0 {
		t.Error("Expected no pending sequence once stored")
	}
}

func TestFileStore_SaveAndRemove(t *testing.T) {
	tmpDir := t.TempDir()
	fs := NewFileStore(tmpDir)

	rel := "recruitment/24000001/24000001_10_20_30_0_cv.pdf"
	target, err := fs.SaveBytes(rel, []byte("pdf bytes"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	expected := filepath.Join(tmpDir, filepath.FromSlash(rel))
	if target != expected {
		t.Errorf("Expected path %s, got %s", expected, target)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("Expected content 'pdf bytes', got '%s'", string(data))
	}

	if err := fs.Remove(rel); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("Expected file to be gone")
	}
	if err := fs.Remove(rel); err != nil {
		t.Errorf("Expected removing a missing file to succeed, got %v", err)
	}
}

func TestFileStore_RejectsEscapingPaths(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	for _, rel := range []string{"../outside.pdf", "/abs/path.pdf", ""} {
		if _, err := fs.SaveBytes(rel, []byte("x")); err == nil {
			t.Errorf("Expected %q to be rejected", rel)
		}
	}
}

func TestCheckSize(t *testing.T) {
	if err := CheckSize(2048, 2); err != nil {
		t.Errorf("Expected 2048 bytes to fit in 2 KB, got %v", err)
	}
	if err := CheckSize(2049, 2); err == nil {
		t.Error("Expected 2049 bytes to exceed 2 KB")
	}
	if err := CheckSize(1<<30, 0); err != nil {
		t.Errorf("Expected zero limit to mean unlimited, got %v", err)
	}
}
