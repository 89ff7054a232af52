package canonical

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/models"
)

// defaultOrigin is used when the input URL is relative.
const defaultOrigin = "https://rent.591.com.tw"

// listPath is the only path recognized as a listings search URL.
const listPath = "/list"

// Service derives the deterministic query identity from a listings search
// URL. Two URLs with the same canonical parameter set always produce the same
// query id, regardless of parameter order, station ordering, csv-vs-repeated
// station keys, or explicit default values.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new canonicalizer.
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Canonicalize parses a search URL and returns its canonical query.
// Returns models.ErrInvalidURL when the URL is not a listings URL of the
// target site, models.ErrInvalidQuery when the region parameter is missing.
func (s *Service) Canonicalize(rawURL string) (*models.CanonicalQuery, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidURL, rawURL)
	}
	if u.Host != "" && !strings.HasSuffix(u.Host, "591.com.tw") {
		return nil, fmt.Errorf("%w: unexpected host %s", models.ErrInvalidURL, u.Host)
	}
	if u.Path != listPath {
		return nil, fmt.Errorf("%w: unexpected path %s", models.ErrInvalidURL, u.Path)
	}

	params := extractParams(u.Query())
	if params.Region == "" {
		return nil, models.ErrInvalidQuery
	}

	origin := defaultOrigin
	if u.Host != "" {
		scheme := u.Scheme
		if scheme == "" {
			scheme = "https"
		}
		origin = scheme + "://" + u.Host
	}

	canonical := &models.CanonicalQuery{
		QueryID:      BuildQueryID(params),
		Description:  Describe(params),
		CanonicalURL: BuildURL(origin, params),
		Params:       params,
	}
	canonical.EquivalentURLs = equivalentURLs(origin, params)

	return canonical, nil
}

// extractParams pulls the canonical parameter set out of the raw query.
// Station ids are split on commas, trimmed, deduplicated and sorted ascending
// by string so every ordering collapses to the same set.
func extractParams(q url.Values) models.QueryParams {
	params := models.QueryParams{
		Region:    strings.TrimSpace(q.Get("region")),
		MetroLine: strings.TrimSpace(q.Get("metro")),
		Floor:     strings.TrimSpace(q.Get("other")),
	}

	// The default kind "0" is elided so its presence never changes the id.
	if kind := strings.TrimSpace(q.Get("kind")); kind != "" && kind != "0" {
		params.Kind = kind
	}

	seen := map[string]bool{}
	for _, value := range q["station"] {
		for _, id := range strings.Split(value, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			params.Stations = append(params.Stations, id)
		}
	}
	sort.Strings(params.Stations)

	if price := strings.TrimSpace(q.Get("rentprice")); price != "" {
		parts := strings.SplitN(price, ",", 2)
		params.PriceMin = strings.TrimSpace(parts[0])
		if len(parts) == 2 {
			params.PriceMax = strings.TrimSpace(parts[1])
		}
	}

	params.Sections = splitList(q.Get("section"))
	params.Rooms = splitList(q.Get("multiRoom"))

	return params
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// BuildQueryID renders the deterministic id: ordered concatenation of the
// present facets with "_" separators, facet tokens in fixed order.
func BuildQueryID(params models.QueryParams) string {
	parts := []string{"region" + params.Region}

	if params.Kind != "" {
		parts = append(parts, "kind"+params.Kind)
	}
	if len(params.Stations) > 0 {
		parts = append(parts, "stations"+strings.Join(params.Stations, "-"))
	}
	if params.MetroLine != "" {
		parts = append(parts, "metro"+params.MetroLine)
	}
	if params.PriceMin != "" || params.PriceMax != "" {
		parts = append(parts, "price"+params.PriceMin+","+params.PriceMax)
	}
	if len(params.Sections) > 0 {
		parts = append(parts, "section"+strings.Join(params.Sections, ","))
	}
	if len(params.Rooms) > 0 {
		parts = append(parts, "rooms"+strings.Join(params.Rooms, ","))
	}
	if params.Floor != "" {
		parts = append(parts, "floor"+params.Floor)
	}

	return strings.Join(parts, "_")
}

// Describe renders the localized human-readable summary for a query.
func Describe(params models.QueryParams) string {
	var parts []string

	if name, ok := regionNames[params.Region]; ok {
		parts = append(parts, name)
	} else {
		parts = append(parts, "區域"+params.Region)
	}

	if params.Kind != "" {
		if name, ok := kindNames[params.Kind]; ok {
			parts = append(parts, name)
		} else {
			parts = append(parts, "類型"+params.Kind)
		}
	}

	switch n := len(params.Stations); {
	case n >= 2:
		parts = append(parts, fmt.Sprintf("近%d個捷運站", n))
	case n == 1:
		if name := StationName(params.Stations[0]); name != "" {
			parts = append(parts, "近"+name)
		} else {
			parts = append(parts, "近捷運站"+params.Stations[0])
		}
	}

	if params.MetroLine != "" {
		if name, ok := metroLineNames[params.MetroLine]; ok {
			parts = append(parts, name)
		} else {
			parts = append(parts, "捷運線"+params.MetroLine)
		}
	}

	switch {
	case params.PriceMin != "" && params.PriceMax != "":
		parts = append(parts, params.PriceMin+"-"+params.PriceMax+"元")
	case params.PriceMin != "":
		parts = append(parts, params.PriceMin+"元以上")
	case params.PriceMax != "":
		parts = append(parts, params.PriceMax+"元以下")
	}

	if len(params.Rooms) > 0 {
		parts = append(parts, strings.Join(params.Rooms, "/")+"房")
	}

	return strings.Join(parts, " ")
}

// BuildURL renders the canonical search URL for a parameter set. The fan-out
// uses it to derive per-station URLs from a narrowed copy of the params.
func BuildURL(origin string, params models.QueryParams) string {
	return origin + listPath + "?" + encodeQuery(facetPairs(params, true, false))
}

// facetPairs returns the query parameters of the canonical URL as key/value
// pairs. When csvStations is true the stations collapse to one comma-list
// parameter; otherwise the station key repeats per id. includeDefaultKind
// re-adds the explicit "kind=0" used for equivalent-variant generation.
func facetPairs(params models.QueryParams, csvStations, includeDefaultKind bool) [][2]string {
	var pairs [][2]string

	if params.Kind != "" {
		pairs = append(pairs, [2]string{"kind", params.Kind})
	} else if includeDefaultKind {
		pairs = append(pairs, [2]string{"kind", "0"})
	}
	if params.MetroLine != "" {
		pairs = append(pairs, [2]string{"metro", params.MetroLine})
	}
	if len(params.Rooms) > 0 {
		pairs = append(pairs, [2]string{"multiRoom", strings.Join(params.Rooms, ",")})
	}
	if params.Floor != "" {
		pairs = append(pairs, [2]string{"other", params.Floor})
	}
	pairs = append(pairs, [2]string{"region", params.Region})
	if params.PriceMin != "" || params.PriceMax != "" {
		pairs = append(pairs, [2]string{"rentprice", params.PriceMin + "," + params.PriceMax})
	}
	if len(params.Sections) > 0 {
		pairs = append(pairs, [2]string{"section", strings.Join(params.Sections, ",")})
	}
	if len(params.Stations) > 0 {
		if csvStations {
			pairs = append(pairs, [2]string{"station", strings.Join(params.Stations, ",")})
		} else {
			for _, id := range params.Stations {
				pairs = append(pairs, [2]string{"station", id})
			}
		}
	}

	return pairs
}

// encodeQuery renders pairs in order without escaping the commas that are
// meaningful in station and price lists.
func encodeQuery(pairs [][2]string) string {
	var b strings.Builder
	for i, pair := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(pair[0])
		b.WriteByte('=')
		b.WriteString(pair[1])
	}
	return b.String()
}

// equivalentURLs produces the semantically identical variations of the
// canonical URL: stations as one csv value vs repeated keys, crossed with
// presence vs absence of the explicit default kind.
func equivalentURLs(origin string, params models.QueryParams) []string {
	stationForms := []bool{true}
	if len(params.Stations) > 0 {
		stationForms = []bool{true, false}
	}
	kindForms := []bool{false}
	if params.Kind == "" {
		kindForms = []bool{false, true}
	}

	var urls []string
	for _, csv := range stationForms {
		for _, defaultKind := range kindForms {
			urls = append(urls, origin+listPath+"?"+encodeQuery(facetPairs(params, csv, defaultKind)))
		}
	}
	return urls
}
