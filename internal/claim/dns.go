package claim

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"
)

// Resolver is the DNS lookup needed for dead-domain detection.
// *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// NetResolver returns the system resolver.
func NetResolver() Resolver {
	return net.DefaultResolver
}

const dnsTimeout = 5 * time.Second

// domainDead reports whether the URL's host definitively does not resolve.
// Only an authoritative NXDOMAIN counts: transient resolver failures must
// not cost a claim its URL.
func (c *Controller) domainDead(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	_, err = c.resolver.LookupHost(ctx, u.Hostname())
	if err == nil {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}
	return false
}
