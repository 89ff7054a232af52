package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Sentinel strings substituted by the parser when the layout container is
// missing or contains marker characters. Downstream cleanup may recover the
// real values from the title; the parser does not attempt that.
const (
	UnknownHouseType = "未知類型"
	UnknownRooms     = "未知格局"
)

// hashImageLimit bounds how many image URLs participate in the content hash.
// Ordering past a sorted 10-prefix is cosmetic churn on the site and must not
// dirty the stored row.
const hashImageLimit = 10

// MetroDistance is a per-listing, per-station distance facet. StationID is
// empty when the facet came from a single-station crawl without an explicit
// station parameter.
type MetroDistance struct {
	StationID      string   `json:"stationId,omitempty"`
	StationName    string   `json:"stationName"`
	MetroValueText string   `json:"metroValueText"`
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
}

// Listing is a property observed at the source site.
type Listing struct {
	PropertyID     string           `json:"id"`
	Title          string           `json:"title"`
	Link           string           `json:"link"`
	HouseType      string           `json:"houseType"`
	Rooms          string           `json:"rooms"`
	Tags           []string         `json:"tagsList,omitempty"`
	ImageURLs      []string         `json:"imageUrls,omitempty"`
	PriceText      string           `json:"priceText"`
	MetroValueText string           `json:"metroValueText,omitempty"`
	StationName    string           `json:"stationName,omitempty"`
	MetroDistances []*MetroDistance `json:"metroDistances,omitempty"`
	FirstSeenAt    time.Time        `json:"firstSeenAt,omitempty"`
	LastSeenAt     time.Time        `json:"lastSeenAt,omitempty"`
}

var numericSegment = regexp.MustCompile(`/(\d+)(?:[/?#.]|$)`)

// DerivePropertyID derives the stable identifier for a listing, most reliable
// source first: a numeric path segment in the link, then a title-station
// composite, then the slugified title alone.
func DerivePropertyID(link, title, stationName string) string {
	if m := numericSegment.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if stationName != "" {
		return Slugify(title + "-" + stationName)
	}
	return Slugify(title)
}

// Slugify normalizes a free-text identifier component: lowercase, whitespace
// and separator runs collapsed to single hyphens.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastHyphen := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '/' || r == '_' || r == '-' || r == '|':
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		default:
			b.WriteRune(r)
			lastHyphen = false
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ContentHash computes the digest used to detect meaningful listing changes.
// Volatile fields are excluded: image ordering beyond a sorted 10-prefix and
// notification metadata never participate, so cosmetic reshuffles on the site
// do not amplify into row rewrites.
func (l *Listing) ContentHash() string {
	tags := append([]string(nil), l.Tags...)
	sort.Strings(tags)

	images := append([]string(nil), l.ImageURLs...)
	sort.Strings(images)
	if len(images) > hashImageLimit {
		images = images[:hashImageLimit]
	}

	facets := make([]string, 0, len(l.MetroDistances))
	for _, d := range l.MetroDistances {
		facets = append(facets, d.StationID+"\x1e"+d.StationName+"\x1e"+d.MetroValueText)
	}
	sort.Strings(facets)

	h := sha256.New()
	for _, part := range []string{
		l.Title,
		l.HouseType,
		l.Rooms,
		strings.Join(tags, "\x1f"),
		strings.Join(images, "\x1f"),
		strings.Join(facets, "\x1f"),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AddMetroDistance appends a facet, deduplicating on the
// (stationId, stationName, metroValueText) triple.
func (l *Listing) AddMetroDistance(d *MetroDistance) {
	for _, existing := range l.MetroDistances {
		if existing.StationID == d.StationID &&
			existing.StationName == d.StationName &&
			existing.MetroValueText == d.MetroValueText {
			return
		}
	}
	l.MetroDistances = append(l.MetroDistances, d)
}

// String implements fmt.Stringer for log output.
func (l *Listing) String() string {
	return fmt.Sprintf("%s (%s)", l.PropertyID, l.Title)
}
