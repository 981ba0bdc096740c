package resilience

import (
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient_NilAndPermanent(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("perplexity: invalid api key")))
	assert.False(t, IsTransient(eris.New("business b1 not found")))
}

func TestIsTransient_Wrapper(t *testing.T) {
	err := NewTransientError(eris.New("browserless: 502 bad gateway"), 502)
	assert.True(t, IsTransient(err))

	// The marker survives further wrapping.
	assert.True(t, IsTransient(eris.Wrap(err, "render failed")))
	assert.Equal(t, "browserless: 502 bad gateway", err.Error())
}

func TestIsTransient_DNS(t *testing.T) {
	// NXDOMAIN is the dead-domain verdict, never a retry.
	nx := &net.DNSError{Err: "no such host", Name: "deadsite123.biz", IsNotFound: true}
	assert.False(t, IsTransient(nx))

	timeout := &net.DNSError{Err: "timeout", Name: "acmeplumbing.com", IsTimeout: true}
	assert.True(t, IsTransient(timeout))

	servfail := &net.DNSError{Err: "server misbehaving", Name: "acmeplumbing.com", IsTemporary: true}
	assert.True(t, IsTransient(servfail))
}

func TestIsTransient_Syscall(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: %w", syscall.ECONNRESET)))
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)))
	assert.True(t, IsTransient(fmt.Errorf("write: %w", syscall.EPIPE)))
}

func TestIsTransient_MessageHeuristics(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"read tcp 10.0.0.1:443: connection reset by peer", true},
		{"net/http: TLS handshake timeout", true},
		{"read tcp: i/o timeout", true},
		{"lookup acme.com: temporary failure in name resolution", true},
		{"http2: server closed idle connection", true},
		{"anthropic: response was not valid json", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, IsTransient(eris.New(tc.msg)), "msg %q", tc.msg)
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 404, 422, 501} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
