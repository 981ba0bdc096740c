package pipeline

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sells-group/sitecheck/internal/discovery"
	"github.com/sells-group/sitecheck/internal/model"
)

var linkRe = regexp.MustCompile(`https?://[^\s"'<>()\[\]]+`)

// infraHosts are hosts that appear in page text for technical reasons and
// are never a business's own website.
var infraHosts = []string{
	"schema.org",
	"w3.org",
	"google.com",
	"googleapis.com",
	"gstatic.com",
	"cloudflare.com",
	"cdninstagram.com",
	"fbcdn.net",
	"twimg.com",
	"licdn.com",
	"bit.ly",
	"linktr.ee",
}

// ExternalWebsiteLink scans a rendered page's text for the first outbound
// link that could be the business's own website: not a social network, not
// a directory or aggregator, and not platform infrastructure. Social
// profiles routinely carry exactly one such link in the bio.
func ExternalWebsiteLink(signals *model.PageSignals, filter *discovery.DomainFilter) string {
	if signals == nil || signals.Text == "" {
		return ""
	}

	for _, raw := range linkRe.FindAllString(signals.Text, 25) {
		candidate := strings.TrimRight(raw, ".,;:!?")
		u, err := url.Parse(candidate)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if isInfraHost(host) {
			continue
		}
		if filter.Categorize(candidate) != discovery.CategoryNone {
			continue
		}
		return candidate
	}
	return ""
}

func isInfraHost(host string) bool {
	for _, h := range infraHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
