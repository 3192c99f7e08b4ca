package router

import (
	"net"
	"strings"

	"golang.org/x/net/idna"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/project"
)

var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.VerifyDNSLength(true),
)

// ProjectFromHost derives the project identifier from a request host, which
// may carry a port. The host must be a domain name with at least two labels.
func ProjectFromHost(host string) (project.ID, error) {
	raw := host
	host = strings.TrimSpace(host)
	if host == "" {
		return "", routingError("missing host", raw)
	}
	if strings.HasPrefix(host, "[") {
		return "", routingError("host is an IP literal", raw)
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return "", routingError("missing host", raw)
	}
	if net.ParseIP(host) != nil {
		return "", routingError("host is an IP literal", raw)
	}

	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return "", ferrors.RoutingError("malformed host").
			WithCause(err).WithContext("host", raw).Build()
	}

	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return "", routingError("host has no project label", raw)
	}
	for _, l := range labels {
		if l == "" {
			return "", routingError("host contains an empty label", raw)
		}
	}
	if err := project.Validate(labels[0]); err != nil {
		return "", ferrors.RoutingError("host does not name a valid project").
			WithCause(err).WithContext("host", raw).Build()
	}
	return project.ID(labels[0]), nil
}

func routingError(msg, host string) error {
	return ferrors.RoutingError(msg).WithContext("host", host).Build()
}
