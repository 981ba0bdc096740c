package prescreen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrescreen_ValidURL(t *testing.T) {
	for _, u := range []string{
		"https://acmeplumbing.com",
		"http://www.acmeplumbing.co.uk/contact",
		"https://acme.com/about?ref=1",
	} {
		r := Prescreen(u)
		assert.True(t, r.ShouldProceed, "url %s should proceed", u)
		assert.Equal(t, RecommendProceed, r.Recommendation)
		assert.Empty(t, r.SkipReason)
	}
}

func TestPrescreen_FileExtensions(t *testing.T) {
	cases := []string{
		"https://acme.com/menu.pdf",
		"https://acme.com/brochure.DOCX",
		"https://acme.com/logo.png",
		"https://acme.com/promo.mp4",
		"https://acme.com/setup.exe",
		"https://acme.com/archive.tar",
	}
	for _, u := range cases {
		r := Prescreen(u)
		assert.False(t, r.ShouldProceed, "url %s should be rejected", u)
		assert.Equal(t, RecommendReject, r.Recommendation)
		assert.True(t, r.IsFile)
		assert.Contains(t, r.SkipReason, "file")
	}
}

func TestPrescreen_ExtensionNotConfusedByDomain(t *testing.T) {
	// A .co domain is not a .com file, and an unknown extension passes.
	r := Prescreen("https://acme.co")
	assert.True(t, r.ShouldProceed)

	r = Prescreen("https://acme.com/page.html")
	assert.True(t, r.ShouldProceed)
}

func TestPrescreen_StorageHosts(t *testing.T) {
	for _, u := range []string{
		"https://drive.google.com/file/d/abc123/view",
		"https://www.dropbox.com/s/xyz/menu",
		"https://acme.sharepoint.com/sites/public",
	} {
		r := Prescreen(u)
		assert.False(t, r.ShouldProceed, "url %s should be rejected", u)
		assert.True(t, r.IsFile)
	}
}

func TestPrescreen_Shorteners(t *testing.T) {
	r := Prescreen("https://bit.ly/3xYzAbc")
	assert.False(t, r.ShouldProceed)
	assert.Equal(t, RecommendExpand, r.Recommendation)
	assert.Contains(t, r.SkipReason, "expand")
	assert.False(t, r.IsFile)
}

func TestPrescreen_IPAndLocalhost(t *testing.T) {
	for _, u := range []string{
		"http://127.0.0.1/",
		"https://192.168.1.10/site",
		"http://localhost:8080",
		"https://[::1]/",
	} {
		r := Prescreen(u)
		assert.False(t, r.ShouldProceed, "url %s should be rejected", u)
		assert.Equal(t, RecommendReject, r.Recommendation)
	}
}

func TestPrescreen_Malformed(t *testing.T) {
	cases := map[string]string{
		"":                     "empty",
		"   ":                  "empty",
		"acmeplumbing.com":     "scheme",
		"ftp://acme.com/site":  "scheme",
		"https://":             "domain",
		"https://singlelabel":  "dot",
		"http://%zz":           "malformed",
	}
	for u, want := range cases {
		r := Prescreen(u)
		assert.False(t, r.ShouldProceed, "url %q should be rejected", u)
		assert.Contains(t, r.SkipReason, want, "url %q", u)
	}
}
