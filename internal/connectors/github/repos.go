package github

import (
	"context"

	gh "github.com/google/go-github/v80/github"
)

// repoRef names a repository to fetch issues from.
type repoRef struct {
	Owner string
	Name  string
}

func (r repoRef) String() string {
	return r.Owner + "/" + r.Name
}

// resolveRepos returns the configured repositories, or every accessible
// one when none are configured.
func resolveRepos(ctx context.Context, client *Client, cfg Config) ([]repoRef, error) {
	if len(cfg.Repos) > 0 {
		refs := make([]repoRef, 0, len(cfg.Repos))
		for _, full := range cfg.Repos {
			owner, name, err := SplitRepo(full)
			if err != nil {
				return nil, err
			}
			refs = append(refs, repoRef{Owner: owner, Name: name})
		}
		return refs, nil
	}

	repos, err := client.ListAllAccessibleRepos(ctx)
	if err != nil {
		return nil, err
	}
	repos = FilterRepos(repos, cfg.IncludeArchived, cfg.IncludeForks)

	refs := make([]repoRef, 0, len(repos))
	for _, r := range repos {
		if !r.GetHasIssues() {
			continue
		}
		refs = append(refs, repoRef{Owner: r.GetOwner().GetLogin(), Name: r.GetName()})
	}
	return refs, nil
}

// FilterRepos filters repositories based on criteria.
func FilterRepos(repos []*gh.Repository, includeArchived, includeForks bool) []*gh.Repository {
	filtered := make([]*gh.Repository, 0, len(repos))
	for _, r := range repos {
		if r.GetArchived() && !includeArchived {
			continue
		}
		if r.GetFork() && !includeForks {
			continue
		}
		if r.GetDisabled() {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
