package dealstore

import (
	"crypto/sha256"
	"dealfeed/internal/model"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var asinPattern = regexp.MustCompile(`(?i)/(?:dp|gp/product)/([A-Z0-9]{10})(?:[/?#]|$)`)

// Key derives the dedup key for a deal. It is total and deterministic:
// the most specific, retailer-controlled identity wins, and a content
// hash is the last resort. The priority order must not change, or
// already-stored records stop matching their resubmissions.
func Key(d model.Deal) string {
	if sk := strings.TrimSpace(d.SourceKey); sk != "" {
		return "source:" + strings.ToLower(sk)
	}
	if asin := asinFromURL(d.URL); asin != "" {
		return "asin:" + strings.ToLower(asin)
	}
	if nu := URLKey(d.URL); nu != "" {
		return "url:" + nu
	}
	if nt := normalizeTitle(d.Title); nt != "" {
		return "title:" + nt
	}
	return "hash:" + contentHash(d)
}

// URLKey normalizes a URL for identity comparison: query and fragment
// stripped, lowercased, trailing slash trimmed. Returns "" when the URL
// does not parse as an absolute URL.
func URLKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	s := strings.ToLower(u.Scheme + "://" + u.Host + u.Path)
	return strings.TrimSuffix(s, "/")
}

func asinFromURL(rawURL string) string {
	m := asinPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func contentHash(d model.Deal) string {
	bs, err := json.Marshal(d)
	if err != nil {
		// Deal contains no unmarshalable types; keep the function total anyway.
		bs = []byte(fmt.Sprintf("%+v", d))
	}
	sum := sha256.Sum256(bs)
	return hex.EncodeToString(sum[:])
}
