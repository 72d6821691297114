package search

import "testing"

func TestLikeMode_Pattern(t *testing.T) {
	tests := []struct {
		mode LikeMode
		want string
	}{
		{mode: LikeNone, want: "jo"},
		{mode: LikeStart, want: "jo%"},
		{mode: LikeEnd, want: "%jo"},
		{mode: LikeAnywhere, want: "%jo%"},
	}
	for _, tt := range tests {
		if got := tt.mode.Pattern("jo"); got != tt.want {
			t.Errorf("mode %d: expected %q, got %q", tt.mode, tt.want, got)
		}
	}
}

func TestNewExampleOptions(t *testing.T) {
	opts := NewExampleOptions()
	if !opts.ExcludeZeros || !opts.ExcludeNulls {
		t.Error("default options should skip zero and nil values")
	}
	if opts.LikeMode != LikeNone || opts.IgnoreCase {
		t.Error("default options should match exactly")
	}

	opts.SetExcludeZeros(false).SetExcludeNulls(false).SetLikeMode(LikeStart).SetIgnoreCase(true)
	if opts.ExcludeZeros || opts.ExcludeNulls || opts.LikeMode != LikeStart || !opts.IgnoreCase {
		t.Errorf("setters did not apply: %+v", opts)
	}
}

func TestExampleOptions_Considers(t *testing.T) {
	tests := []struct {
		name string
		opts *ExampleOptions
		path string
		want bool
	}{
		{name: "no lists", opts: NewExampleOptions(), path: "age", want: true},
		{name: "excluded", opts: NewExampleOptions().Exclude("age"), path: "age", want: false},
		{name: "other excluded", opts: NewExampleOptions().Exclude("age"), path: "email", want: true},
		{name: "included", opts: NewExampleOptions().Include("email"), path: "email", want: true},
		{name: "not included", opts: NewExampleOptions().Include("email"), path: "age", want: false},
		{name: "parent of nested include", opts: NewExampleOptions().Include("father.lastName"), path: "father", want: true},
		{name: "prefix is not a parent", opts: NewExampleOptions().Include("fatherName"), path: "father", want: false},
		{name: "exclude wins", opts: NewExampleOptions().Include("age").Exclude("age"), path: "age", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Considers(tt.path); got != tt.want {
				t.Errorf("Considers(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestExampleOptions_Included(t *testing.T) {
	opts := NewExampleOptions().Include("father.lastName", "age")

	if !opts.Included("age") || !opts.Included("father.lastName") {
		t.Error("listed paths should be included")
	}
	if opts.Included("father") {
		t.Error("a parent path is walkable but not listed")
	}
}
