// Package audit builds the organization collaborator report: it walks the
// organization's repositories and their collaborators, resolves SAML
// identities and organization roles, and merges them into one row per
// (repository, collaborator) pair.
package audit

import (
	"fmt"
	"strings"
)

// PermissionAll is the wildcard permission filter that keeps every collaborator
const PermissionAll = "ALL"

// OutsideCollaborator is the organization role of a collaborator who is not an organization member
const OutsideCollaborator = "OUTSIDE COLLABORATOR"

// Permissions lists the repository permission filters a run accepts
var Permissions = []string{"ADMIN", "MAINTAIN", "WRITE", "TRIAGE", "READ", PermissionAll}

// Affiliations lists the collaborator affiliation scopes a run accepts
var Affiliations = []string{"ALL", "DIRECT", "OUTSIDE"}

// Variant selects how much is collected per collaborator
type Variant string

const (
	// VariantBasic collects identity, permission and SSO email only
	VariantBasic Variant = "basic"
	// VariantExtended also collects organization role, account dates and contributions
	VariantExtended Variant = "extended"
)

// ParseVariant converts a configuration value into a Variant
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantBasic, VariantExtended:
		return v, nil
	case "":
		return VariantExtended, nil
	default:
		return "", fmt.Errorf("unknown report variant %q (want basic or extended)", s)
	}
}

// Extended reports whether the variant collects membership and contributions
func (v Variant) Extended() bool {
	return v == VariantExtended
}

// Repository is an organization repository
type Repository struct {
	Name       string
	Visibility string
}

// Contributions holds the eight contribution counters of a collaborator over the lookback window
type Contributions struct {
	HasAny                             bool
	Commits                            int
	Issues                             int
	PullRequests                       int
	PullRequestReviews                 int
	RepositoriesWithCommits            int
	RepositoriesWithIssues             int
	RepositoriesWithPullRequests       int
	RepositoriesWithPullRequestReviews int
}

// Total is the unweighted sum of the eight counters
func (c Contributions) Total() int {
	return c.Commits + c.Issues + c.PullRequests + c.PullRequestReviews +
		c.RepositoriesWithCommits + c.RepositoriesWithIssues +
		c.RepositoriesWithPullRequests + c.RepositoriesWithPullRequestReviews
}

// Collaborator is one collaborator of one repository as fetched, after filtering
type Collaborator struct {
	Repository    string
	Visibility    string
	Organization  string
	Login         string
	Name          string
	PublicEmail   string
	VerifiedEmail string // organization verified-domain emails joined with ", "
	Permission    string
	CreatedAt     string // YYYY-MM-DD, empty in basic runs
	UpdatedAt     string // YYYY-MM-DD, empty in basic runs

	// Contributions is nil when contributions were not measured
	Contributions *Contributions
}

// SSOIdentity links a GitHub login to its SAML NameID
type SSOIdentity struct {
	Login string
	Email string
}

// Membership is a login's organization role
type Membership struct {
	Login string
	Role  string
}

// Row is one line of the report: a Collaborator joined with its SSO email and organization role
type Row struct {
	Repository          string `json:"orgRepo"`
	Visibility          string `json:"visibility"`
	Login               string `json:"login"`
	Name                string `json:"name"`
	SSOEmail            string `json:"ssoEmailValue"`
	PublicEmail         string `json:"publicEmail"`
	VerifiedEmail       string `json:"verifiedEmail"`
	Permission          string `json:"permission"`
	Organization        string `json:"org"`
	CreatedAt           string `json:"createdAt,omitempty"`
	UpdatedAt           string `json:"updatedAt,omitempty"`
	ActiveContributions *bool  `json:"activeContrib,omitempty"`
	TotalContributions  *int   `json:"sumContrib,omitempty"`
	OrganizationRole    string `json:"memberValue,omitempty"`
}

// SkippedRepository records a repository whose collaborators could not be read
type SkippedRepository struct {
	Name   string
	Reason string
}
