package discovery

import (
	"strings"

	"github.com/sells-group/sitecheck/internal/model"
)

// tldCountry maps country-code TLDs to countries. Generic TLDs carry no
// signal and are absent.
var tldCountry = map[string]string{
	".ca":     "CA",
	".co.uk":  "GB",
	".uk":     "GB",
	".com.au": "AU",
	".au":     "AU",
	".co.nz":  "NZ",
	".nz":     "NZ",
	".ie":     "IE",
	".de":     "DE",
	".fr":     "FR",
	".mx":     "MX",
	".in":     "IN",
}

// phonePrefixCountry maps international dialing prefixes to countries.
// +1 is ambiguous (US/CA) and therefore absent.
var phonePrefixCountry = map[string]string{
	"+44":  "GB",
	"+61":  "AU",
	"+64":  "NZ",
	"+353": "IE",
	"+49":  "DE",
	"+33":  "FR",
	"+52":  "MX",
	"+91":  "IN",
}

// inferCountry derives a low-confidence country signal from the candidate
// URL's TLD and the business phone prefix when the search itself produced
// none. TLD evidence alone never crosses the update threshold.
func inferCountry(business model.Business, result *model.DiscoveryResult) (country string, confidence float64, signals []string) {
	if result.CandidateURL != "" {
		host := hostOf(result.CandidateURL)
		for tld, c := range tldCountry {
			if strings.HasSuffix(host, tld) {
				country = c
				confidence = 0.5
				signals = append(signals, "tld:"+tld)
				break
			}
		}
	}

	phone := strings.ReplaceAll(business.Phone, " ", "")
	for prefix, c := range phonePrefixCountry {
		if strings.HasPrefix(phone, prefix) {
			if country == c {
				confidence = 0.8
			} else if country == "" {
				country = c
				confidence = 0.6
			}
			signals = append(signals, "phone:"+prefix)
			break
		}
	}

	return country, confidence, signals
}
