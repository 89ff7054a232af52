package policy

import (
	"regexp"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/models"
)

var (
	metersPattern  = regexp.MustCompile(`(\d+)\s*公尺`)
	minutesPattern = regexp.MustCompile(`(\d+)\s*分鐘`)
)

// Engine decides, per listing, whether a notification fires and whether it is
// silent. Distance is the only filter axis: a listing farther from its
// nearest station than the configured threshold is "far".
type Engine struct {
	walkingSpeed float64 // meters per minute, for "N分鐘" texts
	logger       arbor.ILogger
}

// NewEngine creates a policy engine. walkingSpeed converts walking-minute
// distance texts to meters.
func NewEngine(walkingSpeed float64, logger arbor.ILogger) *Engine {
	if walkingSpeed <= 0 {
		walkingSpeed = 80
	}
	return &Engine{walkingSpeed: walkingSpeed, logger: logger}
}

// ParseDistance extracts a distance in meters from a localized metro text.
// Recognizes "N公尺" directly and "N分鐘" via the walking speed. Returns nil
// when the text carries neither form.
func (e *Engine) ParseDistance(metroValueText string) *float64 {
	if m := metersPattern.FindStringSubmatch(metroValueText); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	if m := minutesPattern.FindStringSubmatch(metroValueText); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			meters := v * e.walkingSpeed
			return &meters
		}
	}
	return nil
}

// ResolveDistances fills the numeric distance on every station facet of the
// listing from its metro text.
func (e *Engine) ResolveDistances(listing *models.Listing) {
	for _, d := range listing.MetroDistances {
		if d.DistanceMeters == nil {
			d.DistanceMeters = e.ParseDistance(d.MetroValueText)
		}
	}
}

// EffectiveDistance returns the listing's distance to its nearest station:
// the minimum across station facets, falling back to the primary metro text
// when no facet resolved. Nil means the distance is unknown.
func (e *Engine) EffectiveDistance(listing *models.Listing) *float64 {
	var min *float64
	for _, d := range listing.MetroDistances {
		if d.DistanceMeters == nil {
			continue
		}
		if min == nil || *d.DistanceMeters < *min {
			v := *d.DistanceMeters
			min = &v
		}
	}
	if min == nil {
		min = e.ParseDistance(listing.MetroValueText)
	}
	return min
}

// Evaluate applies the notification policy to one listing. An unknown
// distance is never treated as far, so missing site data cannot silently
// suppress a listing.
func (e *Engine) Evaluate(opts *models.CrawlOptions, listing *models.Listing) models.NotificationMeta {
	e.ResolveDistances(listing)

	meta := models.NotificationMeta{
		DistanceFromMRT:   e.EffectiveDistance(listing),
		DistanceThreshold: opts.Filter.MRTDistanceThreshold,
	}
	if meta.DistanceThreshold != nil && meta.DistanceFromMRT != nil {
		meta.IsFarFromMRT = *meta.DistanceFromMRT > *meta.DistanceThreshold
	}

	switch opts.NotifyMode {
	case models.NotifyModeAll:
		meta.WillNotify = true
	case models.NotifyModeNone:
		// suppressed
	default: // filtered
		if !meta.IsFarFromMRT {
			meta.WillNotify = true
		} else if opts.FilteredMode == models.FilteredModeSilent {
			meta.WillNotify = true
			meta.IsSilent = true
		}
	}

	return meta
}
