package github

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v75/github"
)

// CommitIdentity is the committer recorded on report commits
type CommitIdentity struct {
	Name  string
	Email string
}

// FileUpdate describes a create-or-update of one file through the contents API
type FileUpdate struct {
	Owner     string
	Repo      string
	Path      string
	Branch    string // empty means the default branch
	Message   string
	Content   []byte
	Committer CommitIdentity
}

// FileSHA returns the blob SHA of path, or "" when the file does not exist yet
func (c *Client) FileSHA(ctx context.Context, owner, repo, path, branch string) (string, error) {
	var file *github.RepositoryContent
	opts := &github.RepositoryContentGetOptions{Ref: branch}

	_, err := c.doREST(ctx, "GetContents", func(ctx context.Context) (*github.Response, error) {
		var resp *github.Response
		var err error
		file, _, resp, err = c.rest.Repositories.GetContents(ctx, owner, repo, path, opts)
		return resp, err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s in %s/%s: %w", path, owner, repo, err)
	}
	if file == nil {
		return "", fmt.Errorf("%s in %s/%s is a directory", path, owner, repo)
	}
	return file.GetSHA(), nil
}

// PutFile creates the file, or updates it in place when it already exists.
// It returns the commit SHA and whether an existing file was updated.
func (c *Client) PutFile(ctx context.Context, update FileUpdate) (string, bool, error) {
	sha, err := c.FileSHA(ctx, update.Owner, update.Repo, update.Path, update.Branch)
	if err != nil {
		return "", false, err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(update.Message),
		Content: update.Content,
		Committer: &github.CommitAuthor{
			Name:  github.Ptr(update.Committer.Name),
			Email: github.Ptr(update.Committer.Email),
		},
	}
	if update.Branch != "" {
		opts.Branch = github.Ptr(update.Branch)
	}

	var result *github.RepositoryContentResponse
	operation := "CreateFile"
	if sha != "" {
		operation = "UpdateFile"
		opts.SHA = github.Ptr(sha)
	}

	_, err = c.doREST(ctx, operation, func(ctx context.Context) (*github.Response, error) {
		var resp *github.Response
		var err error
		if sha != "" {
			result, resp, err = c.rest.Repositories.UpdateFile(ctx, update.Owner, update.Repo, update.Path, opts)
		} else {
			result, resp, err = c.rest.Repositories.CreateFile(ctx, update.Owner, update.Repo, update.Path, opts)
		}
		return resp, err
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to write %s to %s/%s: %w", update.Path, update.Owner, update.Repo, err)
	}

	c.logger.Info("Report file committed",
		"repository", update.Owner+"/"+update.Repo,
		"path", update.Path,
		"updated", sha != "")

	if result == nil {
		return "", sha != "", nil
	}
	return result.Commit.GetSHA(), sha != "", nil
}
