// Package prescreen rejects obviously-invalid candidate URLs before any
// expensive pipeline stage runs. Pure Go — no network access.
package prescreen

import (
	"net"
	"net/url"
	"path"
	"strings"
)

// Recommendation tells the caller how to proceed after a prescreen.
type Recommendation string

const (
	// RecommendProceed means the URL passed every cheap check.
	RecommendProceed Recommendation = "proceed"
	// RecommendReject means the URL can never be a business website.
	RecommendReject Recommendation = "reject"
	// RecommendExpand flags a shortener link that should be expanded and
	// re-screened rather than hard-rejected.
	RecommendExpand Recommendation = "expand_shortener"
)

// Result is the outcome of one prescreen call.
type Result struct {
	ShouldProceed  bool
	SkipReason     string
	Recommendation Recommendation
	// IsFile marks rejections caused by a document/media/archive URL or a
	// file-storage host, so the orchestrator can tag the result.
	IsFile bool
}

// fileExtensions are path suffixes that identify non-website resources.
var fileExtensions = []string{
	// documents
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt", ".rtf", ".csv",
	// archives
	".zip", ".rar", ".7z", ".tar", ".gz",
	// images
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".ico",
	// media
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm",
	// executables / installers
	".exe", ".dmg", ".apk", ".msi",
}

// storageHosts are cloud-drive domains that host files, not websites.
var storageHosts = []string{
	"drive.google.com",
	"docs.google.com",
	"dropbox.com",
	"onedrive.live.com",
	"1drv.ms",
	"box.com",
	"mega.nz",
	"wetransfer.com",
	"sharepoint.com",
}

// shortenerHosts are known URL shorteners. Shortened links are flagged for
// expansion rather than rejected outright.
var shortenerHosts = []string{
	"bit.ly",
	"tinyurl.com",
	"goo.gl",
	"t.co",
	"ow.ly",
	"is.gd",
	"buff.ly",
	"rebrand.ly",
	"cutt.ly",
	"shorturl.at",
}

// Prescreen classifies a raw URL. It never panics and never touches the
// network; on any doubt it proceeds and lets later stages catch the issue.
func Prescreen(rawURL string) Result {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return reject("empty url")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return reject("malformed url: " + err.Error())
	}

	switch u.Scheme {
	case "http", "https":
	case "":
		return reject("missing scheme (expected http or https)")
	default:
		return reject("unsupported scheme " + u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return reject("missing domain")
	}

	if host == "localhost" || net.ParseIP(host) != nil {
		return reject("bare IP or localhost host " + host)
	}

	if !strings.Contains(host, ".") {
		return reject("host has no dot: " + host)
	}

	if ext := matchedExtension(u.Path); ext != "" {
		r := reject("url points at a file (" + ext + ")")
		r.IsFile = true
		return r
	}

	if matched := matchedDomain(host, storageHosts); matched != "" {
		r := reject("file-storage host " + matched)
		r.IsFile = true
		return r
	}

	if matched := matchedDomain(host, shortenerHosts); matched != "" {
		return Result{
			ShouldProceed:  false,
			SkipReason:     "url shortener " + matched + "; expand before validating",
			Recommendation: RecommendExpand,
		}
	}

	return Result{ShouldProceed: true, Recommendation: RecommendProceed}
}

func reject(reason string) Result {
	return Result{
		ShouldProceed:  false,
		SkipReason:     reason,
		Recommendation: RecommendReject,
	}
}

// matchedExtension returns the known file extension the path ends in, or "".
func matchedExtension(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return ""
	}
	for _, known := range fileExtensions {
		if ext == known {
			return known
		}
	}
	return ""
}

// matchedDomain returns the list entry the host equals or is a subdomain of.
func matchedDomain(host string, list []string) string {
	host = strings.TrimPrefix(host, "www.")
	for _, d := range list {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d
		}
	}
	return ""
}
