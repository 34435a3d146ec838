// Package linkpolicy validates submitted deal links against a retailer
// allowlist and generic link-safety rules. All checks are pure functions
// over the URL string; the caller decides how to surface rejections.
package linkpolicy

import (
	"net"
	"net/url"
	"strings"
)

const maxURLLength = 2048

// Rejection reasons, stable strings used in API responses and telemetry.
const (
	ReasonEmptyURL         = "empty_url"
	ReasonURLTooLong       = "url_too_long"
	ReasonInvalidURL       = "invalid_url"
	ReasonInsecureScheme   = "insecure_scheme"
	ReasonCredentialsInURL = "credentials_in_url"
	ReasonNonASCIIHost     = "non_ascii_host"
	ReasonLocalHost        = "local_host"
	ReasonPrivateIPHost    = "private_ip_host"
	ReasonIPLiteralHost    = "ip_literal_host"
	ReasonExplicitPort     = "explicit_port"
	ReasonBlockedExtension = "blocked_extension"
	ReasonHostNotAllowed   = "host_not_allowed_for_retailer"
	ReasonShortenerHost    = "shortener_host"
)

var blockedExtensions = []string{
	".exe", ".msi", ".bat", ".cmd", ".scr", ".ps1",
	".jar", ".apk", ".dmg", ".pkg", ".iso",
}

// retailerDomains maps a normalized retailer label to the hosts its links
// may use. A host passes when it equals one of the domains or is a
// subdomain of one.
var retailerDomains = map[string][]string{
	"amazon":       {"amazon.ca", "amazon.com"},
	"ebay":         {"ebay.ca", "ebay.com"},
	"walmart":      {"walmart.ca", "walmart.com"},
	"bestbuy":      {"bestbuy.ca", "bestbuy.com"},
	"costco":       {"costco.ca", "costco.com"},
	"newegg":       {"newegg.ca", "newegg.com"},
	"thehomedepot": {"homedepot.ca", "homedepot.com"},
	"canadiantire": {"canadiantire.ca"},
	"staples":      {"staples.ca", "staples.com"},
}

var shortenerHosts = map[string]bool{
	"bit.ly":      true,
	"tinyurl.com": true,
	"goo.gl":      true,
	"t.co":        true,
	"ow.ly":       true,
	"is.gd":       true,
	"buff.ly":     true,
	"rb.gy":       true,
	"cutt.ly":     true,
	"shorturl.at": true,
	"tiny.cc":     true,
}

type Result struct {
	OK            bool
	NormalizedURL string
	Host          string
	Reason        string
}

func fail(reason string) Result {
	return Result{Reason: reason}
}

// Validate runs the link-safety checks in order, short-circuiting on the
// first failure. On success it returns the original URL string untouched
// and the lowercased host.
func Validate(rawURL, retailer string) Result {
	if strings.TrimSpace(rawURL) == "" {
		return fail(ReasonEmptyURL)
	}
	if len(rawURL) > maxURLLength {
		return fail(ReasonURLTooLong)
	}

	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fail(ReasonInvalidURL)
	}
	if u.Scheme != "https" {
		return fail(ReasonInsecureScheme)
	}
	if u.User != nil {
		return fail(ReasonCredentialsInURL)
	}

	host := strings.ToLower(u.Hostname())
	if !isASCII(host) {
		return fail(ReasonNonASCIIHost)
	}
	if host == "localhost" || strings.HasSuffix(host, ".local") {
		return fail(ReasonLocalHost)
	}
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fail(ReasonPrivateIPHost)
		}
		return fail(ReasonIPLiteralHost)
	}
	if u.Port() != "" {
		return fail(ReasonExplicitPort)
	}

	path := strings.ToLower(u.Path)
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(path, ext) {
			return fail(ReasonBlockedExtension)
		}
	}

	if domains, known := retailerDomains[normalizeRetailer(retailer)]; known {
		if !hostAllowed(host, domains) {
			return fail(ReasonHostNotAllowed)
		}
	} else if shortenerHosts[host] {
		return fail(ReasonShortenerHost)
	}

	return Result{OK: true, NormalizedURL: rawURL, Host: host}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// isPrivateIP covers the ranges rejected with a distinct reason for
// telemetry: 0.x, 10.x, 127.x, 169.254.x, 172.16-31.x, 192.168.x and ::1.
func isPrivateIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 0, ip4[0] == 10, ip4[0] == 127:
			return true
		case ip4[0] == 169 && ip4[1] == 254:
			return true
		case ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31:
			return true
		case ip4[0] == 192 && ip4[1] == 168:
			return true
		}
		return false
	}
	return ip.IsLoopback()
}

func hostAllowed(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// normalizeRetailer collapses free-text retailer labels ("Best Buy",
// "best-buy") onto allowlist keys. Unknown labels fall through to the
// generic shortener check.
func normalizeRetailer(retailer string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(retailer) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
