package geoconform

import "strings"

// DatasetPath is a parsed dataset reference of the form
//
//	path
//	DRIVER:path
//	DRIVER:path:subdataset
//
// A prefix is recognized as a driver only when it is at least two characters
// of letters, digits and underscores, so Windows drive letters stay part of
// the path.
type DatasetPath struct {
	Driver     string
	Path       string
	Subdataset string
}

// ParseDatasetPath splits s into its driver, path and subdataset parts.
func ParseDatasetPath(s string) DatasetPath {
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok || len(prefix) < 2 || !isDriverName(prefix) || strings.HasPrefix(rest, "//") {
		return DatasetPath{Path: s}
	}
	dp := DatasetPath{Driver: prefix, Path: rest}
	if i := strings.LastIndexByte(rest, ':'); i > 0 {
		sub := rest[i+1:]
		if sub != "" && !strings.ContainsAny(sub, `/\`) {
			dp.Path = rest[:i]
			dp.Subdataset = sub
		}
	}
	return dp
}

func (p DatasetPath) String() string {
	if p.Driver == "" {
		return p.Path
	}
	if p.Subdataset == "" {
		return p.Driver + ":" + p.Path
	}
	return p.Driver + ":" + p.Path + ":" + p.Subdataset
}

func isDriverName(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
