package decompose

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func contains(s, sub string) bool { return strings.Contains(s, sub) }

func TestInferExports(t *testing.T) {
	tests := []struct {
		desc string
		want []string
	}{
		{
			desc: "Create the UserService with a validateToken() helper and AuthToken type",
			want: []string{"UserService", "validateToken", "AuthToken"},
		},
		{
			desc: "Add SessionStore, SessionStore.get() and newSession(id) plus RefreshToken and AccessToken",
			want: []string{"SessionStore", "get", "newSession"},
		},
		{
			desc: "Write the README. Update docs for JSON output.",
			want: nil,
		},
	}

	for _, tt := range tests {
		if got := InferExports(tt.desc); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("InferExports(%q) = %v, want %v", tt.desc, got, tt.want)
		}
	}
}

func TestBuildSummary(t *testing.T) {
	a := &models.WorkOrder{ID: "a", Title: "Models", Description: "Define UserRecord", FilesInScope: []string{"src/models.ts", "src/index.ts"}}
	b := &models.WorkOrder{ID: "b", Title: "Store", Description: "Implement saveUser() on top of UserRecord", DependsOn: []string{"a"}}

	entries := BuildSummary([]*models.WorkOrder{a, b})
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].PrimaryFile != "src/models.ts" {
		t.Errorf("PrimaryFile = %q", entries[0].PrimaryFile)
	}
	if !reflect.DeepEqual(entries[1].Dependencies, []int{0}) {
		t.Errorf("Dependencies = %v, want [0]", entries[1].Dependencies)
	}
	if !reflect.DeepEqual(entries[1].Exports, []string{"saveUser", "UserRecord"}) {
		t.Errorf("Exports = %v", entries[1].Exports)
	}

	text := FormatSummary(entries)
	for _, want := range []string{"[0] Models | file: src/models.ts | exports: UserRecord", "[1] Store", "deps: [0]"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Implement saveUser") {
		t.Error("summary must not carry full task bodies")
	}
}

func TestFormatSummary_Empty(t *testing.T) {
	if got := FormatSummary(nil); got != "(no tasks emitted yet)" {
		t.Errorf("FormatSummary(nil) = %q", got)
	}
}
