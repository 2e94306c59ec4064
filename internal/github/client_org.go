package github

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/shurcooL/githubv4"
)

// Repository is an organization repository as returned by GraphQL
type Repository struct {
	Name       string
	Visibility string // PUBLIC, PRIVATE or INTERNAL
}

// Contributions is a user's contributionsCollection for one organization and window
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

// Collaborator is one collaborators edge: the user node plus the edge permission
type Collaborator struct {
	Login          string
	Name           string
	Email          string
	VerifiedEmails []string
	Permission     string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Contributions is nil when the query did not request them
	Contributions *Contributions
}

// CollaboratorQuery selects the collaborators of one repository
type CollaboratorQuery struct {
	Org         string
	OrgID       string
	Repository  string
	Affiliation string // ALL, DIRECT or OUTSIDE

	// WithContributions requests contributionsCollection for [From, To)
	WithContributions bool
	From              time.Time
	To                time.Time
}

// ExternalIdentity is a SAML external identity. Login is empty when the
// identity is not linked to a GitHub account.
type ExternalIdentity struct {
	Login  string
	NameID string
}

// Member is an organization member and its organization role
type Member struct {
	Login string
	Role  string // ADMIN or MEMBER
}

// OrganizationID returns the GraphQL node ID of an organization
func (c *Client) OrganizationID(ctx context.Context, org string) (string, error) {
	var q organizationIDQuery
	variables := map[string]any{
		"org": githubv4.String(org),
	}

	if err := c.query(ctx, "OrganizationID", &q, variables); err != nil {
		return "", fmt.Errorf("failed to look up organization %s: %w", org, err)
	}
	if q.Organization.ID == "" {
		return "", fmt.Errorf("organization %s: %w", org, ErrNotFound)
	}

	c.logger.Debug("Organization resolved", "org", org, "id", q.Organization.ID)
	return string(q.Organization.ID), nil
}

// Repositories yields every repository in org visible to the authenticated principal
func (c *Client) Repositories(ctx context.Context, org string) iter.Seq2[Repository, error] {
	return Paginate(ctx, "repositories", func(ctx context.Context, cursor *githubv4.String) (Page[Repository], error) {
		var q repositoriesQuery
		variables := map[string]any{
			"org":    githubv4.String(org),
			"first":  githubv4.Int(PageSize),
			"cursor": cursor,
		}

		if err := c.query(ctx, "ListRepositories", &q, variables); err != nil {
			return Page[Repository]{}, err
		}
		c.recordRateLimit(q.RateLimit)

		conn := q.Organization.Repositories
		page := Page[Repository]{
			Items:       make([]Repository, 0, len(conn.Nodes)),
			HasNextPage: bool(conn.PageInfo.HasNextPage),
			EndCursor:   string(conn.PageInfo.EndCursor),
		}
		for _, node := range conn.Nodes {
			page.Items = append(page.Items, Repository{
				Name:       string(node.Name),
				Visibility: string(node.Visibility),
			})
		}
		return page, nil
	})
}

// Collaborators yields the collaborators of one repository with their permission
func (c *Client) Collaborators(ctx context.Context, cq CollaboratorQuery) iter.Seq2[Collaborator, error] {
	return Paginate(ctx, "collaborators of "+cq.Repository, func(ctx context.Context, cursor *githubv4.String) (Page[Collaborator], error) {
		var q collaboratorsQuery
		variables := map[string]any{
			"org":               githubv4.String(cq.Org),
			"orgID":             githubv4.ID(cq.OrgID),
			"repo":              githubv4.String(cq.Repository),
			"affiliation":       githubv4.CollaboratorAffiliation(cq.Affiliation),
			"first":             githubv4.Int(PageSize),
			"cursor":            cursor,
			"from":              githubv4.DateTime{Time: cq.From},
			"to":                githubv4.DateTime{Time: cq.To},
			"withContributions": githubv4.Boolean(cq.WithContributions),
		}

		if err := c.query(ctx, "ListCollaborators", &q, variables); err != nil {
			return Page[Collaborator]{}, err
		}
		c.recordRateLimit(q.RateLimit)

		if q.Organization.Repository == nil {
			return Page[Collaborator]{}, fmt.Errorf("repository %s/%s: %w", cq.Org, cq.Repository, ErrNotFound)
		}

		conn := q.Organization.Repository.Collaborators
		page := Page[Collaborator]{
			Items:       make([]Collaborator, 0, len(conn.Edges)),
			HasNextPage: bool(conn.PageInfo.HasNextPage),
			EndCursor:   string(conn.PageInfo.EndCursor),
		}
		for _, edge := range conn.Edges {
			collab := Collaborator{
				Login:      string(edge.Node.Login),
				Name:       string(edge.Node.Name),
				Email:      string(edge.Node.Email),
				Permission: string(edge.Permission),
				CreatedAt:  edge.Node.CreatedAt.Time,
				UpdatedAt:  edge.Node.UpdatedAt.Time,
			}
			for _, email := range edge.Node.OrganizationVerifiedDomainEmails {
				collab.VerifiedEmails = append(collab.VerifiedEmails, string(email))
			}
			if cq.WithContributions {
				cc := edge.Node.ContributionsCollection
				collab.Contributions = &Contributions{
					HasAny:                             bool(cc.HasAnyContributions),
					Commits:                            int(cc.TotalCommitContributions),
					Issues:                             int(cc.TotalIssueContributions),
					PullRequests:                       int(cc.TotalPullRequestContributions),
					PullRequestReviews:                 int(cc.TotalPullRequestReviewContributions),
					RepositoriesWithCommits:            int(cc.TotalRepositoriesWithContributedCommits),
					RepositoriesWithIssues:             int(cc.TotalRepositoriesWithContributedIssues),
					RepositoriesWithPullRequests:       int(cc.TotalRepositoriesWithContributedPullRequests),
					RepositoriesWithPullRequestReviews: int(cc.TotalRepositoriesWithContributedPullRequestReviews),
				}
			}
			page.Items = append(page.Items, collab)
		}
		return page, nil
	})
}

// HasSAMLIdentityProvider reports whether org has a SAML identity provider configured
func (c *Client) HasSAMLIdentityProvider(ctx context.Context, org string) (bool, error) {
	var q samlProviderQuery
	variables := map[string]any{
		"org": githubv4.String(org),
	}

	if err := c.query(ctx, "SAMLIdentityProvider", &q, variables); err != nil {
		return false, fmt.Errorf("failed to probe SAML identity provider for %s: %w", org, err)
	}
	return q.Organization.SamlIdentityProvider != nil, nil
}

// ExternalIdentities yields the SAML external identities of org
func (c *Client) ExternalIdentities(ctx context.Context, org string) iter.Seq2[ExternalIdentity, error] {
	return Paginate(ctx, "external identities", func(ctx context.Context, cursor *githubv4.String) (Page[ExternalIdentity], error) {
		var q externalIdentitiesQuery
		variables := map[string]any{
			"org":    githubv4.String(org),
			"first":  githubv4.Int(PageSize),
			"cursor": cursor,
		}

		if err := c.query(ctx, "ListExternalIdentities", &q, variables); err != nil {
			return Page[ExternalIdentity]{}, err
		}
		c.recordRateLimit(q.RateLimit)

		provider := q.Organization.SamlIdentityProvider
		if provider == nil {
			// Provider removed between the probe and this page.
			return Page[ExternalIdentity]{}, nil
		}

		conn := provider.ExternalIdentities
		page := Page[ExternalIdentity]{
			Items:       make([]ExternalIdentity, 0, len(conn.Edges)),
			HasNextPage: bool(conn.PageInfo.HasNextPage),
			EndCursor:   string(conn.PageInfo.EndCursor),
		}
		for _, edge := range conn.Edges {
			var identity ExternalIdentity
			if edge.Node.User != nil {
				identity.Login = string(edge.Node.User.Login)
			}
			if edge.Node.SamlIdentity != nil {
				identity.NameID = string(edge.Node.SamlIdentity.NameID)
			}
			page.Items = append(page.Items, identity)
		}
		return page, nil
	})
}

// MembersWithRole yields every organization member with its organization role
func (c *Client) MembersWithRole(ctx context.Context, org string) iter.Seq2[Member, error] {
	return Paginate(ctx, "members", func(ctx context.Context, cursor *githubv4.String) (Page[Member], error) {
		var q membersWithRoleQuery
		variables := map[string]any{
			"org":    githubv4.String(org),
			"first":  githubv4.Int(PageSize),
			"cursor": cursor,
		}

		if err := c.query(ctx, "ListMembersWithRole", &q, variables); err != nil {
			return Page[Member]{}, err
		}
		c.recordRateLimit(q.RateLimit)

		conn := q.Organization.MembersWithRole
		page := Page[Member]{
			Items:       make([]Member, 0, len(conn.Edges)),
			HasNextPage: bool(conn.PageInfo.HasNextPage),
			EndCursor:   string(conn.PageInfo.EndCursor),
		}
		for _, edge := range conn.Edges {
			page.Items = append(page.Items, Member{
				Login: string(edge.Node.Login),
				Role:  string(edge.Role),
			})
		}
		return page, nil
	})
}
