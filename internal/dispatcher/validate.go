package dispatcher

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

// scpLike matches git's user@host:path shorthand.
var scpLike = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+:[^/\s][^\s]*$`)

var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ssh":   true,
	"git":   true,
}

// ValidateRepositoryURL returns the trimmed URL when it names a remote git
// repository.
func ValidateRepositoryURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ferrors.ValidationError("gitUrl is required").Build()
	}
	if len(s) > 2048 {
		return "", ferrors.ValidationError("gitUrl is too long").Build()
	}
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return "", invalidURL(s, "gitUrl must not contain whitespace")
	}
	if scpLike.MatchString(s) && !strings.Contains(s, "://") {
		return s, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", ferrors.ValidationError("gitUrl is not a valid URL").
			WithCause(err).WithContext("git_url", s).Build()
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return "", invalidURL(s, "gitUrl scheme must be http, https, ssh or git")
	}
	if u.Hostname() == "" {
		return "", invalidURL(s, "gitUrl has no host")
	}
	if strings.Trim(u.Path, "/") == "" {
		return "", invalidURL(s, "gitUrl has no repository path")
	}
	return s, nil
}

func invalidURL(s, msg string) error {
	return ferrors.ValidationError(msg).WithContext("git_url", s).Build()
}
