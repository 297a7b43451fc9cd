package diagnostic

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string // "line:col code"
	}{
		{
			name:   "tsc classic format",
			output: "src/app.ts(12,5): error TS2304: Cannot find name 'foo'.",
			want:   []string{"12:5 TS2304"},
		},
		{
			name:   "tsc pretty format",
			output: "src/app.ts:3:14 - error TS2322: Type 'string' is not assignable to type 'number'.",
			want:   []string{"3:14 TS2322"},
		},
		{
			name:   "go compiler format",
			output: "./main.go:7:2: undefined: fmt.Prinln",
			want:   []string{"7:2 COMPILE"},
		},
		{
			name:   "go compiler without column",
			output: "main.go:9: syntax error",
			want:   []string{"9:0 COMPILE"},
		},
		{
			name: "mixed output with noise",
			output: strings.Join([]string{
				"Found 2 errors.",
				"",
				"a.ts(1,1): error TS1005: ';' expected.",
				"a.ts(2,3): error TS2552: Cannot find name 'Foo'.",
				"   at something",
			}, "\n"),
			want: []string{"1:1 TS1005", "2:3 TS2552"},
		},
		{
			name:   "duplicates collapse",
			output: "a.ts(1,1): error TS1005: ';' expected.\na.ts(1,1): error TS1005: ';' expected.",
			want:   []string{"1:1 TS1005"},
		},
		{
			name:   "no diagnostics",
			output: "everything fine",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := Parse(tt.output)
			var got []string
			for _, d := range diags {
				got = append(got, fmt.Sprintf("%d:%d %s", d.Line, d.Column, d.Code))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Fields(t *testing.T) {
	diags := Parse("src/app.ts(12,5): error TS2304: Cannot find name 'foo'.")
	require.Len(t, diags, 1)
	assert.Equal(t, "src/app.ts", diags[0].File)
	assert.Equal(t, "Cannot find name 'foo'.", diags[0].Message)
}

func TestSummary(t *testing.T) {
	out := "a\nb\nc\nd"
	assert.Equal(t, "a\nb\n... (2 lines truncated)", Summary(out, 2))
	assert.Equal(t, "a\nb\nc\nd", Summary(out, 10))
}

func TestUnknown(t *testing.T) {
	d := Unknown("segfault")
	assert.Equal(t, CodeUnknown, d.Code)
	assert.Equal(t, "segfault", d.Message)
}
