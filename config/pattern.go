package config

import (
	"fmt"
	"regexp"
)

// GitHub owner names are alphanumeric with interior hyphens; repository
// names additionally allow dots and underscores.
var patternRx = regexp.MustCompile(
	`^([A-Za-z0-9](?:-?[A-Za-z0-9])*)/(\*|[A-Za-z0-9._-]+)$`,
)

// RepoPattern selects repositories by name: either a single "owner/name" or
// every repository under an owner ("owner/*").
type RepoPattern struct {
	Owner string
	Name  string // empty for a wildcard pattern
}

// ParsePattern parses "owner/name" or "owner/*". A malformed pattern is a
// configuration error.
func ParsePattern(s string) (RepoPattern, error) {
	m := patternRx.FindStringSubmatch(s)
	if m == nil || m[2] == "." || m[2] == ".." {
		return RepoPattern{}, fmt.Errorf("invalid repository pattern %q (want owner/name or owner/*)", s)
	}
	p := RepoPattern{Owner: m[1]}
	if m[2] != "*" {
		p.Name = m[2]
	}
	return p, nil
}

// IsWildcard reports whether p matches every repository under its owner.
func (p RepoPattern) IsWildcard() bool { return p.Name == "" }

// Matches reports whether p selects the repository owner/name.
func (p RepoPattern) Matches(owner, name string) bool {
	if p.Owner != owner {
		return false
	}
	return p.IsWildcard() || p.Name == name
}

func (p RepoPattern) String() string {
	if p.IsWildcard() {
		return p.Owner + "/*"
	}
	return p.Owner + "/" + p.Name
}
