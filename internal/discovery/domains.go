package discovery

import (
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DomainCategory classifies a known non-business domain.
type DomainCategory string

const (
	CategoryNone       DomainCategory = ""
	CategoryDirectory  DomainCategory = "directory"
	CategoryAggregator DomainCategory = "aggregator"
	CategorySocial     DomainCategory = "social"
)

// DomainFilter classifies hosts that are never a business's own website.
type DomainFilter struct {
	directories []string
	aggregators []string
	social      []string
}

// defaultDirectories are listing sites: a profile there proves the business
// exists, not that it has a website.
var defaultDirectories = []string{
	"yelp.com",
	"yellowpages.com",
	"bbb.org",
	"manta.com",
	"superpages.com",
	"foursquare.com",
	"tripadvisor.com",
	"chamberofcommerce.com",
	"hotfrog.com",
	"cylex.us.com",
	"brownbook.net",
	"2findlocal.com",
	"yell.com",
	"golocal247.com",
}

// defaultAggregators are marketplaces and booking platforms.
var defaultAggregators = []string{
	"angi.com",
	"homeadvisor.com",
	"thumbtack.com",
	"houzz.com",
	"zillow.com",
	"realtor.com",
	"opentable.com",
	"doordash.com",
	"grubhub.com",
	"ubereats.com",
	"booking.com",
	"expedia.com",
	"avvo.com",
	"healthgrades.com",
	"zocdoc.com",
	"care.com",
}

// defaultSocial are social networks; profiles there get the rescue
// treatment rather than outright acceptance.
var defaultSocial = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"tiktok.com",
	"youtube.com",
	"pinterest.com",
	"nextdoor.com",
}

// domainListFile is the YAML override file shape.
type domainListFile struct {
	Directories []string `yaml:"directories"`
	Aggregators []string `yaml:"aggregators"`
	Social      []string `yaml:"social"`
}

// NewDomainFilter returns a filter seeded with the built-in lists.
func NewDomainFilter() *DomainFilter {
	return &DomainFilter{
		directories: defaultDirectories,
		aggregators: defaultAggregators,
		social:      defaultSocial,
	}
}

// NewDomainFilterFromFile extends the built-in lists with a YAML file.
func NewDomainFilterFromFile(path string) (*DomainFilter, error) {
	f := NewDomainFilter()
	if path == "" {
		return f, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: read domain list %s", path)
	}

	var file domainListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, eris.Wrapf(err, "discovery: parse domain list %s", path)
	}

	f.directories = append(f.directories, file.Directories...)
	f.aggregators = append(f.aggregators, file.Aggregators...)
	f.social = append(f.social, file.Social...)
	return f, nil
}

// Categorize returns the non-business category of a URL's host, or
// CategoryNone for an ordinary domain.
func (f *DomainFilter) Categorize(rawURL string) DomainCategory {
	host := hostOf(rawURL)
	if host == "" {
		return CategoryNone
	}

	switch {
	case matchesAny(host, f.directories):
		return CategoryDirectory
	case matchesAny(host, f.aggregators):
		return CategoryAggregator
	case matchesAny(host, f.social):
		return CategorySocial
	}
	return CategoryNone
}

// IsSocial reports whether the URL is a social-network profile.
func (f *DomainFilter) IsSocial(rawURL string) bool {
	return f.Categorize(rawURL) == CategorySocial
}

// ExcludeList renders the filter as Perplexity search_domain_filter
// exclusions. The API caps the list, so only the highest-traffic entries go.
func (f *DomainFilter) ExcludeList(max int) []string {
	var out []string
	for _, d := range f.directories {
		out = append(out, "-"+d)
	}
	for _, d := range f.aggregators {
		out = append(out, "-"+d)
	}
	for _, d := range f.social {
		out = append(out, "-"+d)
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func matchesAny(host string, list []string) bool {
	for _, d := range list {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
