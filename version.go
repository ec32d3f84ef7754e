package unityasset

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed engine version such as "2019.4.0f1".
type Version struct {
	Major int
	Minor int
	Patch int
	// Type is the release type letter: a (alpha), b (beta), f (final), p
	// (patch), c (china) or x (experimental). Empty if absent.
	Type  string
	Build int
}

// ParseVersion parses an engine version string. Trailing metadata after the
// build number, such as "2018.4.2f1-CUSTOM", is ignored.
func ParseVersion(s string) (v Version, err error) {
	orig := s
	if i := strings.IndexAny(s, " -\n"); i >= 0 {
		s = s[:i]
	}
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return v, fmt.Errorf("invalid engine version %q", orig)
	}
	if v.Major, err = strconv.Atoi(parts[0]); err != nil {
		return v, fmt.Errorf("invalid engine version %q: bad major", orig)
	}
	if v.Minor, err = strconv.Atoi(parts[1]); err != nil {
		return v, fmt.Errorf("invalid engine version %q: bad minor", orig)
	}
	if len(parts) < 3 {
		return v, nil
	}
	rest := parts[2]
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return v, fmt.Errorf("invalid engine version %q: bad patch", orig)
	}
	v.Patch, _ = strconv.Atoi(rest[:i])
	rest = rest[i:]
	if rest == "" {
		return v, nil
	}
	if !strings.ContainsRune("abfpcx", rune(rest[0])) {
		return v, fmt.Errorf("invalid engine version %q: bad release type", orig)
	}
	v.Type = rest[:1]
	rest = rest[1:]
	if rest == "" {
		return v, nil
	}
	if v.Build, err = strconv.Atoi(rest); err != nil {
		return v, fmt.Errorf("invalid engine version %q: bad build", orig)
	}
	return v, nil
}

func (v Version) String() string {
	s := strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor) + "." + strconv.Itoa(v.Patch)
	if v.Type != "" {
		s += v.Type + strconv.Itoa(v.Build)
	}
	return s
}

var releaseOrder = map[string]int{"x": 0, "a": 1, "b": 2, "c": 3, "": 4, "f": 4, "p": 5}

// Compare returns -1, 0 or +1 depending on whether v is older than, equal to
// or newer than w.
func (v Version) Compare(w Version) int {
	a := [...]int{v.Major, v.Minor, v.Patch, releaseOrder[v.Type], v.Build}
	b := [...]int{w.Major, w.Minor, w.Patch, releaseOrder[w.Type], w.Build}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// AtLeast returns whether v is the given major.minor release or newer.
func (v Version) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}
