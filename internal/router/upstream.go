package router

import (
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/sitedeploy/internal/project"
)

// DefaultDocument is served for the root path.
const DefaultDocument = "index.html"

// UpstreamPath maps a request path to the path below the project namespace.
// Dot segments are resolved so the result never leaves the namespace.
func UpstreamPath(reqPath string) string {
	if reqPath == "" || reqPath == "/" {
		return "/" + DefaultDocument
	}
	cleaned := path.Clean("/" + reqPath)
	if cleaned == "/" {
		return "/" + DefaultDocument
	}
	if strings.HasSuffix(reqPath, "/") {
		cleaned += "/"
	}
	return cleaned
}

// UpstreamURL composes <base>/<id><path>?<query>.
func UpstreamURL(base *url.URL, id project.ID, reqPath, rawQuery string) *url.URL {
	u := *base
	u.Path = strings.TrimRight(base.Path, "/") + "/" + string(id) + UpstreamPath(reqPath)
	u.RawPath = ""
	u.RawQuery = rawQuery
	u.Fragment = ""
	return &u
}
