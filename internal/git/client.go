package git

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// Client performs clones for the build worker.
type Client struct {
	depth    int
	progress io.Writer
}

// CloneResult describes a finished checkout.
type CloneResult struct {
	Path   string
	Commit string
}

// NewClient creates a client. A positive depth requests a shallow clone.
func NewClient(depth int) *Client { return &Client{depth: depth} }

// WithProgress streams go-git progress output to w (fluent helper).
func (c *Client) WithProgress(w io.Writer) *Client { c.progress = w; return c }

// Clone checks out url into dest, replacing anything already there.
func (c *Client) Clone(ctx context.Context, url, dest string) (*CloneResult, error) {
	if url == "" {
		return nil, GitError("repository url is empty").Build()
	}
	slog.Debug("Cloning repository", logfields.RepoURL(url), logfields.Path(dest), slog.Int("depth", c.depth))
	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("failed to remove existing directory: %w", err)
	}

	opts := &git.CloneOptions{URL: url, Progress: c.progress}
	if c.depth > 0 {
		opts.Depth = c.depth
		opts.SingleBranch = true
	}
	repository, err := git.PlainCloneContext(ctx, dest, false, opts)
	if err != nil {
		return nil, ClassifyGitError(err, "clone", url)
	}

	res := &CloneResult{Path: dest}
	if ref, herr := repository.Head(); herr == nil {
		res.Commit = ref.Hash().String()
		slog.Info("Repository cloned", logfields.RepoURL(url), slog.String("commit", res.Commit[:8]), logfields.Path(dest))
	} else {
		slog.Info("Repository cloned", logfields.RepoURL(url), logfields.Path(dest))
	}
	return res, nil
}
