package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kuhlman-labs/collab-report/internal/github"
)

// CommitMessageSuffix follows the run date in report commit messages
const CommitMessageSuffix = "repo collaborator report"

// Published describes where a report file ended up
type Published struct {
	Path     string
	Location string // owner/repo@branch or a local file path
	Updated  bool   // an existing file was replaced
	Commit   string // commit SHA, empty for local writes
}

// Sink persists rendered report files
type Sink interface {
	Put(ctx context.Context, file File) (Published, error)
}

// FileWriter creates or updates a file in a repository. *github.Client implements it.
type FileWriter interface {
	PutFile(ctx context.Context, update github.FileUpdate) (string, bool, error)
}

// Publisher commits report files to a repository through the contents API
type Publisher struct {
	writer    FileWriter
	owner     string
	repo      string
	branch    string
	committer github.CommitIdentity
	now       func() time.Time
}

// NewPublisher creates a publisher for target, given as owner/name
func NewPublisher(writer FileWriter, target, branch string, committer github.CommitIdentity) (*Publisher, error) {
	owner, repo, err := SplitRepository(target)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		writer:    writer,
		owner:     owner,
		repo:      repo,
		branch:    branch,
		committer: committer,
		now:       time.Now,
	}, nil
}

// SplitRepository splits an owner/name repository reference
func SplitRepository(target string) (string, string, error) {
	owner, repo, ok := strings.Cut(target, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid target repository %q (want owner/name)", target)
	}
	return owner, repo, nil
}

// CommitMessage is the message of the report commit made on day
func CommitMessage(day time.Time) string {
	return day.Format(time.DateOnly) + " " + CommitMessageSuffix
}

// Put creates the file or updates it in place when it already exists
func (p *Publisher) Put(ctx context.Context, file File) (Published, error) {
	commit, updated, err := p.writer.PutFile(ctx, github.FileUpdate{
		Owner:     p.owner,
		Repo:      p.repo,
		Path:      file.Path,
		Branch:    p.branch,
		Message:   CommitMessage(p.now()),
		Content:   file.Content,
		Committer: p.committer,
	})
	if err != nil {
		return Published{}, err
	}

	location := p.owner + "/" + p.repo
	if p.branch != "" {
		location += "@" + p.branch
	}
	return Published{Path: file.Path, Location: location, Updated: updated, Commit: commit}, nil
}

// DirWriter writes report files under a local directory instead of committing them
type DirWriter struct {
	dir string
}

// NewDirWriter creates a writer rooted at dir
func NewDirWriter(dir string) *DirWriter {
	return &DirWriter{dir: dir}
}

// Put writes file below the directory, replacing any previous copy
func (d *DirWriter) Put(_ context.Context, file File) (Published, error) {
	target := filepath.Join(d.dir, filepath.FromSlash(file.Path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Published{}, fmt.Errorf("failed to create report directory: %w", err)
	}

	_, statErr := os.Stat(target)
	if err := os.WriteFile(target, file.Content, 0o644); err != nil {
		return Published{}, fmt.Errorf("failed to write %s: %w", target, err)
	}
	return Published{Path: file.Path, Location: d.dir, Updated: statErr == nil}, nil
}

// Emit hands every file to sink in order and stops at the first failure
func Emit(ctx context.Context, sink Sink, files []File, logger *slog.Logger) ([]Published, error) {
	published := make([]Published, 0, len(files))
	for _, file := range files {
		p, err := sink.Put(ctx, file)
		if err != nil {
			return published, fmt.Errorf("failed to publish %s: %w", file.Path, err)
		}
		logger.Info("Report written",
			"path", p.Path,
			"location", p.Location,
			"updated", p.Updated,
			"bytes", len(file.Content))
		published = append(published, p)
	}
	return published, nil
}
