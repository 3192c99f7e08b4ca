package project

import (
	"fmt"
	"path"
	"strings"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

// MaxIDLength is the DNS label limit.
const MaxIDLength = 63

// ID identifies one deployment.
type ID string

func (id ID) String() string { return string(id) }

// Validate reports whether id can serve both as a DNS label and as a key prefix.
func Validate(id string) error {
	if id == "" {
		return ferrors.ValidationError("project id is empty").Build()
	}
	if len(id) > MaxIDLength {
		return ferrors.ValidationError("project id exceeds 63 characters").
			WithContext("project_id", id).Build()
	}
	if id[0] == '-' || id[len(id)-1] == '-' {
		return ferrors.ValidationError("project id must not start or end with a hyphen").
			WithContext("project_id", id).Build()
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return ferrors.ValidationError("project id may only contain a-z, 0-9 and '-'").
				WithContext("project_id", id).Build()
		}
	}
	return nil
}

// Namespace returns the key prefix owning every artifact of a project.
func Namespace(root string, id ID) string {
	root = strings.Trim(root, "/")
	if root == "" {
		return string(id)
	}
	return root + "/" + string(id)
}

// ArtifactKey composes <root>/<id>/<rel>. id must be a valid identifier and rel
// must stay inside the namespace.
func ArtifactKey(root string, id ID, rel string) (string, error) {
	if err := Validate(string(id)); err != nil {
		return "", err
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	cleaned := path.Clean("/" + rel)
	if rel == "" || cleaned == "/" || strings.Contains("/"+rel+"/", "/../") {
		return "", ferrors.ValidationError("artifact path escapes the project namespace").
			WithContext("path", rel).Build()
	}
	return Namespace(root, id) + cleaned, nil
}

// PublicURL predicts where the router will serve a project.
func PublicURL(scheme string, id ID, proxyHost string) string {
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s.%s", scheme, id, proxyHost)
}
