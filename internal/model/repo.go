// Package model holds the core domain types shared across reponews:
// repositories, activity events, lifecycle notices, and tracking policies.
package model

import "fmt"

// RepoID is GitHub's opaque node ID for a repository. It is stable across
// renames: two records carrying the same RepoID refer to the same repository
// even when owner/name differ between runs.
type RepoID string

// User identifies a GitHub account. Name is empty for bots and for users who
// never set a display name. IsViewer is true when the account is the
// authenticated user.
type User struct {
	Login    string
	Name     string
	URL      string
	IsViewer bool
}

func (u User) String() string { return u.Login }

// Repo is a concrete repository as last fetched. Owner and Name are mutable
// (renames happen); ID is not.
type Repo struct {
	ID          RepoID
	Owner       string
	Name        string
	URL         string
	Description string
}

// FullName returns the "owner/name" form.
func (r Repo) FullName() string { return r.Owner + "/" + r.Name }

func (r Repo) String() string { return r.FullName() }

// Affiliation classifies how the authenticated user is connected to a
// repository.
type Affiliation string

const (
	AffiliationOwner        Affiliation = "owner"
	AffiliationOrgMember    Affiliation = "organization-member"
	AffiliationCollaborator Affiliation = "collaborator"
)

// AllAffiliations returns every affiliation kind, in a fixed order.
func AllAffiliations() []Affiliation {
	return []Affiliation{AffiliationOwner, AffiliationOrgMember, AffiliationCollaborator}
}

// ParseAffiliation validates a config-supplied affiliation token.
func ParseAffiliation(s string) (Affiliation, error) {
	switch Affiliation(s) {
	case AffiliationOwner, AffiliationOrgMember, AffiliationCollaborator:
		return Affiliation(s), nil
	}
	return "", fmt.Errorf("unknown affiliation %q (valid: owner, organization-member, collaborator)", s)
}
