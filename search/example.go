package search

import "slices"

// LikeMode selects how string properties of an example are matched.
type LikeMode int

const (
	LikeNone LikeMode = iota
	LikeStart
	LikeEnd
	LikeAnywhere
)

// Pattern turns value into a LIKE pattern for the mode.
func (m LikeMode) Pattern(value string) string {
	switch m {
	case LikeStart:
		return value + "%"
	case LikeEnd:
		return "%" + value
	case LikeAnywhere:
		return "%" + value + "%"
	}
	return value
}

// ExampleOptions controls how a filter is derived from an example entity.
//
// Build it with NewExampleOptions: the zero value does not exclude nulls.
type ExampleOptions struct {
	ExcludeZeros      bool
	ExcludeNulls      bool
	ExcludeProperties []string
	IncludeProperties []string
	LikeMode          LikeMode
	IgnoreCase        bool
}

// NewExampleOptions returns options that skip nil and zero values.
func NewExampleOptions() *ExampleOptions {
	return &ExampleOptions{ExcludeNulls: true, ExcludeZeros: true}
}

func (o *ExampleOptions) SetExcludeZeros(v bool) *ExampleOptions { o.ExcludeZeros = v; return o }

func (o *ExampleOptions) SetExcludeNulls(v bool) *ExampleOptions { o.ExcludeNulls = v; return o }

func (o *ExampleOptions) SetLikeMode(m LikeMode) *ExampleOptions { o.LikeMode = m; return o }

func (o *ExampleOptions) SetIgnoreCase(v bool) *ExampleOptions { o.IgnoreCase = v; return o }

// Exclude adds property paths that never take part in the filter.
func (o *ExampleOptions) Exclude(paths ...string) *ExampleOptions {
	o.ExcludeProperties = append(o.ExcludeProperties, paths...)
	return o
}

// Include restricts the filter to the given property paths.
func (o *ExampleOptions) Include(paths ...string) *ExampleOptions {
	o.IncludeProperties = append(o.IncludeProperties, paths...)
	return o
}

// Considers reports whether path passes the include and exclude lists.
func (o *ExampleOptions) Considers(path string) bool {
	if slices.Contains(o.ExcludeProperties, path) {
		return false
	}
	if len(o.IncludeProperties) == 0 {
		return true
	}
	return slices.ContainsFunc(o.IncludeProperties, func(p string) bool {
		// a nested include keeps its parent association walkable
		return p == path || len(p) > len(path) && p[:len(path)] == path && p[len(path)] == '.'
	})
}

// Included reports whether path is listed explicitly in IncludeProperties.
func (o *ExampleOptions) Included(path string) bool {
	return slices.Contains(o.IncludeProperties, path)
}
