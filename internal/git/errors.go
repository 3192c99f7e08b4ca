package git

import (
	stderrors "errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

// GitError starts a git-category error.
func GitError(message string) *errors.ErrorBuilder {
	return errors.NewError(errors.CategoryGit, message)
}

// Message fragments emitted by go-git and the transports it wraps.
var (
	authHints        = []string{"authentication required", "authentication failed", "authorization failed", "invalid credentials"}
	missingHints     = []string{"repository not found", "does not exist", "not found"}
	networkHints     = []string{"remote hung up", "connection reset", "connection refused", "timeout", "no route to host", "context deadline exceeded"}
	unsupportedHints = []string{"unsupported scheme", "unsupported protocol", "protocol not supported"}
)

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// ClassifyGitError wraps a failed git operation into a ClassifiedError.
// Already classified errors are returned unchanged.
func ClassifyGitError(err error, op string, url string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	b := GitError("git "+op+" failed").
		WithCause(err).
		WithContext("op", op).
		WithContext("url", url)

	msg := strings.ToLower(err.Error())
	switch {
	case stderrors.Is(err, transport.ErrAuthenticationRequired),
		stderrors.Is(err, transport.ErrAuthorizationFailed),
		containsAny(msg, authHints):
		b.WithContext("reason", "auth")
	case stderrors.Is(err, transport.ErrRepositoryNotFound), containsAny(msg, missingHints):
		b.WithCategory(errors.CategoryNotFound)
	case containsAny(msg, networkHints):
		b.WithCategory(errors.CategoryNetwork).Retryable()
	case containsAny(msg, unsupportedHints):
		b.WithCategory(errors.CategoryValidation)
	}
	return b.Build()
}
