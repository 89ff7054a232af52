package models

import "encoding/json"

// NotifyMode selects the top-level notification behavior for a crawl.
type NotifyMode string

const (
	NotifyModeAll      NotifyMode = "all"
	NotifyModeFiltered NotifyMode = "filtered"
	NotifyModeNone     NotifyMode = "none"
)

// FilteredMode refines how far-from-MRT listings are treated when NotifyMode
// is "filtered".
type FilteredMode string

const (
	FilteredModeNormal FilteredMode = "normal"
	FilteredModeSilent FilteredMode = "silent"
	FilteredModeNone   FilteredMode = "none"
)

// FilterOptions carries the distance-based silencing rule. A nil threshold
// means no listing is ever considered far.
type FilterOptions struct {
	MRTDistanceThreshold *float64 `json:"mrtDistanceThreshold,omitempty"`
}

// MultiStationOptions tunes the fan-out of a multi-station crawl.
// DelayBetweenRequests is in milliseconds to match the REST surface.
type MultiStationOptions struct {
	MaxConcurrent        int  `json:"maxConcurrent,omitempty" validate:"omitempty,min=1,max=10"`
	DelayBetweenRequests int  `json:"delayBetweenRequests,omitempty" validate:"omitempty,min=0"`
	MergeResults         bool `json:"mergeResults,omitempty"`
	IncludeStationInfo   bool `json:"includeStationInfo,omitempty"`
}

// CrawlOptions is the full invoking policy of one orchestration. A snapshot
// is persisted on the crawl session.
type CrawlOptions struct {
	MaxLatest    int                 `json:"maxLatest,omitempty" validate:"omitempty,min=0"`
	NotifyMode   NotifyMode          `json:"notifyMode,omitempty" validate:"omitempty,oneof=all filtered none"`
	FilteredMode FilteredMode        `json:"filteredMode,omitempty" validate:"omitempty,oneof=normal silent none"`
	Filter       FilterOptions       `json:"filter,omitempty"`
	MultiStation MultiStationOptions `json:"multiStationOptions,omitempty"`
}

// NewDefaultCrawlOptions returns the option defaults used when a request
// omits them: notify filtered, far listings silenced, merged fan-out results.
func NewDefaultCrawlOptions() *CrawlOptions {
	return &CrawlOptions{
		NotifyMode:   NotifyModeFiltered,
		FilteredMode: FilteredModeSilent,
		MultiStation: MultiStationOptions{
			MergeResults:       true,
			IncludeStationInfo: true,
		},
	}
}

// Normalize fills zero-valued fields with their defaults.
func (o *CrawlOptions) Normalize() {
	if o.NotifyMode == "" {
		o.NotifyMode = NotifyModeFiltered
	}
	if o.FilteredMode == "" {
		o.FilteredMode = FilteredModeSilent
	}
}

// ToJSON serializes the options for session persistence.
func (o *CrawlOptions) ToJSON() (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CrawlOptionsFromJSON restores a persisted option snapshot.
func CrawlOptionsFromJSON(data string) (*CrawlOptions, error) {
	opts := &CrawlOptions{}
	if err := json.Unmarshal([]byte(data), opts); err != nil {
		return nil, err
	}
	opts.Normalize()
	return opts, nil
}
