// Package affiliate resolves short product references to fully-qualified
// affiliate URLs. Resolution fails closed: a missing tracking parameter is
// an error, never a redirect without attribution.
package affiliate

import (
	"dealfeed/internal/model"
	"github.com/pkg/errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrUnknownSource     = errors.New("unknown affiliate source")
	ErrIncompleteProgram = errors.New("incomplete affiliate program configuration")
	ErrBadItemID         = errors.New("malformed item id")
)

var itemIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,40}$`)

// AmazonProgram holds the per-country Amazon Associates parameters.
type AmazonProgram struct {
	Domain string
	Tag    string
}

// EBayProgram holds the per-country eBay Partner Network parameters.
type EBayProgram struct {
	Domain string
	CampID string
	MkCID  string
	MkRID  string
	ToolID string
}

type Resolver struct {
	Amazon map[model.Country]AmazonProgram
	EBay   map[model.Country]EBayProgram
}

// Resolve builds the affiliate URL for a stored reference of the form
// source/itemID, using the country's program parameters.
func (r Resolver) Resolve(source, itemID string, c model.Country) (string, error) {
	if !itemIDPattern.MatchString(itemID) {
		return "", errors.Wrapf(ErrBadItemID, "item id: %s", itemID)
	}
	switch strings.ToLower(source) {
	case "amazon":
		p := r.Amazon[model.ParseCountry(string(c))]
		if p.Domain == "" || p.Tag == "" {
			return "", errors.Wrapf(ErrIncompleteProgram, "source: amazon, country: %s", c)
		}
		u := url.URL{
			Scheme:   "https",
			Host:     p.Domain,
			Path:     "/dp/" + strings.ToUpper(itemID),
			RawQuery: url.Values{"tag": {p.Tag}}.Encode(),
		}
		return u.String(), nil
	case "ebay":
		p := r.EBay[model.ParseCountry(string(c))]
		if p.Domain == "" || p.CampID == "" || p.MkCID == "" || p.MkRID == "" || p.ToolID == "" {
			return "", errors.Wrapf(ErrIncompleteProgram, "source: ebay, country: %s", c)
		}
		u := url.URL{
			Scheme: "https",
			Host:   p.Domain,
			Path:   "/itm/" + itemID,
			RawQuery: url.Values{
				"campid": {p.CampID},
				"mkcid":  {p.MkCID},
				"mkrid":  {p.MkRID},
				"toolid": {p.ToolID},
			}.Encode(),
		}
		return u.String(), nil
	}
	return "", errors.Wrapf(ErrUnknownSource, "source: %s", source)
}
