package render

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/sitecheck/internal/model"
)

var (
	phoneRe = regexp.MustCompile(`\+?\(?\d{2,4}\)?[\s.-]?\d{3,4}[\s.-]?\d{3,4}\b`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// streetRe matches "123 Main St" style address fragments.
	streetRe = regexp.MustCompile(`(?i)\b\d{1,5}\s+\w+(\s\w+)?\s+(st|street|ave|avenue|rd|road|blvd|boulevard|dr|drive|ln|lane|way|suite|ste)\b`)

	// hoursRe matches opening-hours fragments like "Mon-Fri 9:00" or "open 8am".
	hoursRe = regexp.MustCompile(`(?i)\b(mon|tue|wed|thu|fri|sat|sun)[a-z]*\s*[-–]\s*(mon|tue|wed|thu|fri|sat|sun)[a-z]*|\bopen(ing)?\s+hours?\b|\b\d{1,2}(:\d{2})?\s*(am|pm)\s*[-–]\s*\d{1,2}(:\d{2})?\s*(am|pm)\b`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// socialHosts are the platforms whose profile links count as social links.
var socialHosts = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"tiktok.com",
	"youtube.com",
	"pinterest.com",
}

// ExtractSignals parses rendered HTML into page signals. Parsing never
// fails hard: unparseable HTML yields an empty loaded page.
func ExtractSignals(html, finalURL string) *model.PageSignals {
	signals := &model.PageSignals{
		Loaded:   true,
		FinalURL: finalURL,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		signals.WordCount = 0
		signals.IsPlaceholder = true
		return signals
	}

	signals.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		signals.MetaDescription = strings.TrimSpace(desc)
	}

	doc.Find("script, style, noscript").Remove()
	text := whitespaceRe.ReplaceAllString(doc.Find("body").Text(), " ")
	text = strings.TrimSpace(text)
	signals.Text = text
	if text != "" {
		signals.WordCount = len(strings.Fields(text))
	}

	// tel:/mailto: links are the most reliable contact signal; fall back to
	// scanning visible text.
	doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			signals.Phones = appendUnique(signals.Phones, strings.TrimPrefix(href, "tel:"))
		}
	})
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			email := strings.TrimPrefix(href, "mailto:")
			if i := strings.IndexByte(email, '?'); i >= 0 {
				email = email[:i]
			}
			signals.Emails = appendUnique(signals.Emails, email)
		}
	})
	for _, m := range phoneRe.FindAllString(text, 5) {
		if digits := countDigits(m); digits >= 9 && digits <= 15 {
			signals.Phones = appendUnique(signals.Phones, strings.TrimSpace(m))
		}
	}
	for _, m := range emailRe.FindAllString(text, 5) {
		signals.Emails = appendUnique(signals.Emails, m)
	}

	signals.HasAddress = doc.Find("address").Length() > 0 || streetRe.MatchString(text)
	signals.HasBusinessHours = hoursRe.MatchString(text)
	signals.HasImages = doc.Find("img[src]").Length() > 0
	signals.HasForms = doc.Find("form").Length() > 0

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lower := strings.ToLower(href)
		for _, host := range socialHosts {
			if strings.Contains(lower, host+"/") {
				signals.SocialLinks = appendUnique(signals.SocialLinks, href)
				break
			}
		}
	})

	signals.IsPlaceholder = isPlaceholder(text, signals.WordCount)

	return signals
}

// placeholderPhrases mark parked or under-construction pages.
var placeholderPhrases = []string{
	"domain is parked",
	"this domain may be for sale",
	"buy this domain",
	"domain has expired",
	"coming soon",
	"under construction",
	"website is being built",
	"future home of",
	"default web page",
	"account suspended",
	"plesk",
	"cpanel",
}

func isPlaceholder(text string, wordCount int) bool {
	if wordCount < 15 {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range placeholderPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return list
	}
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return list
		}
	}
	return append(list, v)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
