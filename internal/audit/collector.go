package audit

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/kuhlman-labs/collab-report/internal/github"
)

// Source is the GitHub surface a report run reads from. *github.Client implements it.
type Source interface {
	OrganizationID(ctx context.Context, org string) (string, error)
	Repositories(ctx context.Context, org string) iter.Seq2[github.Repository, error]
	Collaborators(ctx context.Context, q github.CollaboratorQuery) iter.Seq2[github.Collaborator, error]
	HasSAMLIdentityProvider(ctx context.Context, org string) (bool, error)
	ExternalIdentities(ctx context.Context, org string) iter.Seq2[github.ExternalIdentity, error]
	MembersWithRole(ctx context.Context, org string) iter.Seq2[github.Member, error]
}

// Options configures a report run
type Options struct {
	Organization string
	Permission   string // one of Permissions
	Affiliation  string // one of Affiliations
	Variant      Variant
	Days         int // contribution lookback window in days
}

// Result is the outcome of a report run
type Result struct {
	Organization  string
	Variant       Variant
	Repositories  int
	Rows          []Row
	Skipped       []SkippedRepository
	SSOEnabled    bool
	SSOIdentities int
	Members       int
	From          time.Time
	To            time.Time
	Duration      time.Duration
}

// Collector runs the fetch and merge pipeline against a Source
type Collector struct {
	source Source
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewCollector creates a new collector
func NewCollector(source Source, opts Options, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Permission == "" {
		opts.Permission = "ADMIN"
	}
	if opts.Affiliation == "" {
		opts.Affiliation = "ALL"
	}
	if opts.Variant == "" {
		opts.Variant = VariantExtended
	}
	return &Collector{
		source: source,
		opts:   opts,
		logger: logger.With("org", opts.Organization),
		now:    time.Now,
	}
}

// Run fetches repositories, collaborators, SSO identities and (for extended
// runs) organization roles, and returns the merged rows sorted by repository.
// Organization-level failures abort the run. A repository whose collaborators
// cannot be read is left out entirely and listed in Result.Skipped.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	start := c.now()
	result := &Result{
		Organization: c.opts.Organization,
		Variant:      c.opts.Variant,
		To:           start.UTC(),
		From:         start.UTC().AddDate(0, 0, -c.opts.Days),
	}

	c.logger.Info("Starting collaborator report",
		"permission", c.opts.Permission,
		"affiliation", c.opts.Affiliation,
		"variant", c.opts.Variant,
		"days", c.opts.Days)

	orgID, err := c.source.OrganizationID(ctx, c.opts.Organization)
	if err != nil {
		return nil, err
	}

	var collaborators []Collaborator
	for repo, err := range c.source.Repositories(ctx, c.opts.Organization) {
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s: %w", c.opts.Organization, err)
		}
		result.Repositories++

		r := Repository{Name: repo.Name, Visibility: repo.Visibility}
		records, err := c.collectRepository(ctx, orgID, r, result.From, result.To)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn("Skipping repository", "repository", r.Name, "error", err)
			result.Skipped = append(result.Skipped, SkippedRepository{Name: r.Name, Reason: err.Error()})
			continue
		}

		c.logger.Info("Repository processed", "repository", r.Name, "collaborators", len(records))
		collaborators = append(collaborators, records...)
	}

	sso, err := c.resolveSSO(ctx)
	if err != nil {
		return nil, err
	}
	result.SSOEnabled = sso != nil
	result.SSOIdentities = len(sso)

	var members MembershipIndex
	if c.opts.Variant.Extended() {
		members, err = c.resolveMembership(ctx)
		if err != nil {
			return nil, err
		}
		result.Members = len(members)
	}

	result.Rows = Merge(collaborators, sso, members)
	SortRows(result.Rows)
	result.Duration = c.now().Sub(start)

	c.logger.Info("Collaborator report collected",
		"repositories", result.Repositories,
		"rows", len(result.Rows),
		"skipped", len(result.Skipped),
		"sso_enabled", result.SSOEnabled,
		"duration", result.Duration)

	return result, nil
}

// collectRepository reads every collaborator page of one repository and keeps
// those passing the permission filter. Any page failure discards the repository.
func (c *Collector) collectRepository(ctx context.Context, orgID string, repo Repository, from, to time.Time) ([]Collaborator, error) {
	query := github.CollaboratorQuery{
		Org:               c.opts.Organization,
		OrgID:             orgID,
		Repository:        repo.Name,
		Affiliation:       c.opts.Affiliation,
		WithContributions: c.opts.Variant.Extended(),
		From:              from,
		To:                to,
	}

	var records []Collaborator
	for collab, err := range c.source.Collaborators(ctx, query) {
		if err != nil {
			return nil, err
		}
		if !KeepPermission(collab.Permission, c.opts.Permission) {
			continue
		}
		records = append(records, newCollaborator(c.opts.Organization, repo, collab))
	}
	return records, nil
}

// resolveSSO returns the login to NameID index, or nil when the organization
// has no SAML identity provider. Identities without a linked user are dropped.
func (c *Collector) resolveSSO(ctx context.Context) (SSOIndex, error) {
	enabled, err := c.source.HasSAMLIdentityProvider(ctx, c.opts.Organization)
	if err != nil {
		return nil, err
	}
	if !enabled {
		c.logger.Info("No SAML identity provider configured, SSO emails left blank")
		return nil, nil
	}

	var identities []SSOIdentity
	unlinked := 0
	for id, err := range c.source.ExternalIdentities(ctx, c.opts.Organization) {
		if err != nil {
			return nil, fmt.Errorf("failed to list external identities of %s: %w", c.opts.Organization, err)
		}
		if id.Login == "" {
			unlinked++
			continue
		}
		identities = append(identities, SSOIdentity{Login: id.Login, Email: id.NameID})
	}

	c.logger.Info("SSO identities resolved", "linked", len(identities), "unlinked", unlinked)
	return NewSSOIndex(identities), nil
}

// resolveMembership returns the login to organization role index. The index is
// never nil so that logins absent from it read as outside collaborators.
func (c *Collector) resolveMembership(ctx context.Context) (MembershipIndex, error) {
	var members []Membership
	for m, err := range c.source.MembersWithRole(ctx, c.opts.Organization) {
		if err != nil {
			return nil, fmt.Errorf("failed to list members of %s: %w", c.opts.Organization, err)
		}
		members = append(members, Membership{Login: m.Login, Role: m.Role})
	}

	c.logger.Info("Organization members resolved", "members", len(members))
	return NewMembershipIndex(members), nil
}
