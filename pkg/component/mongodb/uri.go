package mongodb

import (
	"net"
	"net/url"
	"strconv"

	"github.com/kart-io/lifeline/pkg/component"
)

// BuildURI returns opts.URI when set and assembles one from the discrete
// fields otherwise.
func BuildURI(opts *Options) string {
	if opts.URI != "" {
		return opts.URI
	}

	u := url.URL{
		Scheme: "mongodb",
		Host:   opts.Host,
		Path:   "/" + opts.Database,
	}
	if opts.Port != 0 {
		u.Host = net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	}
	if opts.Username != "" {
		if opts.Password != "" {
			u.User = url.UserPassword(opts.Username, opts.Password)
		} else {
			u.User = url.User(opts.Username)
		}
	}

	params := url.Values{}
	if opts.AuthSource != "" && opts.AuthSource != "admin" {
		params.Add("authSource", opts.AuthSource)
	}
	if opts.ReplicaSet != "" {
		params.Add("replicaSet", opts.ReplicaSet)
	}
	if opts.Direct {
		params.Add("directConnection", "true")
	}
	u.RawQuery = params.Encode()

	return u.String()
}

// redactURI masks the password of a URI for display. Unparsable URIs are
// replaced entirely.
func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return component.RedactedPassword
	}
	return u.Redacted()
}
