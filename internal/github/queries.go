package github

import "github.com/shurcooL/githubv4"

// pageInfo is the Relay page info shared by every connection we walk
type pageInfo struct {
	HasNextPage githubv4.Boolean
	EndCursor   githubv4.String
}

// rateLimitInfo is requested alongside each paginated query so the client can
// track the GraphQL point budget without a separate call.
type rateLimitInfo struct {
	Cost      githubv4.Int
	Limit     githubv4.Int
	Remaining githubv4.Int
	ResetAt   githubv4.DateTime
}

type organizationIDQuery struct {
	Organization struct {
		ID githubv4.String
	} `graphql:"organization(login: $org)"`
}

type repositoriesQuery struct {
	RateLimit    rateLimitInfo
	Organization struct {
		Repositories struct {
			Nodes []struct {
				Name       githubv4.String
				Visibility githubv4.RepositoryVisibility
			}
			PageInfo pageInfo
		} `graphql:"repositories(first: $first, after: $cursor)"`
	} `graphql:"organization(login: $org)"`
}

type contributionsCollection struct {
	HasAnyContributions                               githubv4.Boolean
	TotalCommitContributions                          githubv4.Int
	TotalIssueContributions                           githubv4.Int
	TotalPullRequestContributions                     githubv4.Int
	TotalPullRequestReviewContributions               githubv4.Int
	TotalRepositoriesWithContributedCommits           githubv4.Int
	TotalRepositoriesWithContributedIssues            githubv4.Int
	TotalRepositoriesWithContributedPullRequests      githubv4.Int
	TotalRepositoriesWithContributedPullRequestReviews githubv4.Int
}

// collaboratorsQuery skips the contributions sub-selection unless
// $withContributions is set, which keeps basic runs cheap.
type collaboratorsQuery struct {
	RateLimit    rateLimitInfo
	Organization struct {
		Repository *struct {
			Collaborators struct {
				Edges []struct {
					Permission githubv4.RepositoryPermission
					Node       struct {
						Login                            githubv4.String
						Name                             githubv4.String
						Email                            githubv4.String
						OrganizationVerifiedDomainEmails []githubv4.String `graphql:"organizationVerifiedDomainEmails(login: $org)"`
						CreatedAt                        githubv4.DateTime
						UpdatedAt                        githubv4.DateTime
						ContributionsCollection          contributionsCollection `graphql:"contributionsCollection(organizationID: $orgID, from: $from, to: $to) @include(if: $withContributions)"`
					}
				}
				PageInfo pageInfo
			} `graphql:"collaborators(affiliation: $affiliation, first: $first, after: $cursor)"`
		} `graphql:"repository(name: $repo)"`
	} `graphql:"organization(login: $org)"`
}

type samlProviderQuery struct {
	Organization struct {
		SamlIdentityProvider *struct {
			ID githubv4.String
		}
	} `graphql:"organization(login: $org)"`
}

type externalIdentitiesQuery struct {
	RateLimit    rateLimitInfo
	Organization struct {
		SamlIdentityProvider *struct {
			ExternalIdentities struct {
				Edges []struct {
					Node struct {
						SamlIdentity *struct {
							NameID githubv4.String `graphql:"nameId"`
						}
						User *struct {
							Login githubv4.String
						}
					}
				}
				PageInfo pageInfo
			} `graphql:"externalIdentities(first: $first, after: $cursor)"`
		}
	} `graphql:"organization(login: $org)"`
}

type membersWithRoleQuery struct {
	RateLimit    rateLimitInfo
	Organization struct {
		MembersWithRole struct {
			Edges []struct {
				Role githubv4.OrganizationMemberRole
				Node struct {
					Login githubv4.String
				}
			}
			PageInfo pageInfo
		} `graphql:"membersWithRole(first: $first, after: $cursor)"`
	} `graphql:"organization(login: $org)"`
}
