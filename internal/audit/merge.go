package audit

import (
	"slices"
	"strings"
	"time"

	"github.com/kuhlman-labs/collab-report/internal/github"
)

// SSOIndex maps a login to its SAML NameID
type SSOIndex map[string]string

// MembershipIndex maps a login to its organization role. A nil index means
// membership was not resolved.
type MembershipIndex map[string]string

// NewSSOIndex indexes identities by login. The first identity seen for a login wins.
func NewSSOIndex(identities []SSOIdentity) SSOIndex {
	idx := make(SSOIndex, len(identities))
	for _, id := range identities {
		if _, ok := idx[id.Login]; !ok {
			idx[id.Login] = id.Email
		}
	}
	return idx
}

// NewMembershipIndex indexes memberships by login. The first membership seen for a login wins.
func NewMembershipIndex(members []Membership) MembershipIndex {
	idx := make(MembershipIndex, len(members))
	for _, m := range members {
		if _, ok := idx[m.Login]; !ok {
			idx[m.Login] = m.Role
		}
	}
	return idx
}

// KeepPermission reports whether a collaborator with permission passes the target filter
func KeepPermission(permission, target string) bool {
	return target == PermissionAll || permission == target
}

// Merge left-joins collaborators with SSO emails and organization roles by login.
// It returns exactly one row per collaborator, in input order. Logins are compared
// as returned by GitHub, case-sensitively. A login missing from a non-nil
// membership index is an outside collaborator; a nil index leaves the role empty.
func Merge(collaborators []Collaborator, sso SSOIndex, members MembershipIndex) []Row {
	rows := make([]Row, 0, len(collaborators))
	for _, c := range collaborators {
		row := Row{
			Repository:    c.Repository,
			Visibility:    c.Visibility,
			Login:         c.Login,
			Name:          c.Name,
			SSOEmail:      sso[c.Login],
			PublicEmail:   c.PublicEmail,
			VerifiedEmail: c.VerifiedEmail,
			Permission:    c.Permission,
			Organization:  c.Organization,
			CreatedAt:     c.CreatedAt,
			UpdatedAt:     c.UpdatedAt,
		}

		if members != nil {
			role, ok := members[c.Login]
			if !ok {
				role = OutsideCollaborator
			}
			row.OrganizationRole = role
		}

		if c.Contributions != nil {
			active := c.Contributions.HasAny
			total := c.Contributions.Total()
			row.ActiveContributions = &active
			row.TotalContributions = &total
		}

		rows = append(rows, row)
	}
	return rows
}

// SortRows orders rows by repository name, keeping the fetch order of rows within a repository
func SortRows(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		return strings.Compare(a.Repository, b.Repository)
	})
}

// newCollaborator flattens a fetched collaborator edge into a report record
func newCollaborator(org string, repo Repository, gc github.Collaborator) Collaborator {
	c := Collaborator{
		Repository:    repo.Name,
		Visibility:    repo.Visibility,
		Organization:  org,
		Login:         gc.Login,
		Name:          gc.Name,
		PublicEmail:   gc.Email,
		VerifiedEmail: strings.Join(gc.VerifiedEmails, ", "),
		Permission:    gc.Permission,
	}

	if gc.Contributions != nil {
		c.CreatedAt = calendarDate(gc.CreatedAt)
		c.UpdatedAt = calendarDate(gc.UpdatedAt)
		c.Contributions = &Contributions{
			HasAny:                             gc.Contributions.HasAny,
			Commits:                            gc.Contributions.Commits,
			Issues:                             gc.Contributions.Issues,
			PullRequests:                       gc.Contributions.PullRequests,
			PullRequestReviews:                 gc.Contributions.PullRequestReviews,
			RepositoriesWithCommits:            gc.Contributions.RepositoriesWithCommits,
			RepositoriesWithIssues:             gc.Contributions.RepositoriesWithIssues,
			RepositoriesWithPullRequests:       gc.Contributions.RepositoriesWithPullRequests,
			RepositoriesWithPullRequestReviews: gc.Contributions.RepositoriesWithPullRequestReviews,
		}
	}
	return c
}

// calendarDate drops the time of day, reporting the UTC date GitHub returned
func calendarDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
