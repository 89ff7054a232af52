package crawler

import (
	"fmt"

	"github.com/ternarybob/rentwatch/internal/models"
)

// MergeResults collapses station results into one deduplicated listing slice.
// A property seen under several stations keeps its first occurrence and
// absorbs the later stations' distance facets; first-seen order is preserved.
// Failed stations contribute an error string, never abort the merge.
func MergeResults(results []*StationResult) (listings []*models.Listing, crawlErrors []string) {
	byProperty := make(map[string]*models.Listing)

	for _, result := range results {
		if result.Err != nil {
			crawlErrors = append(crawlErrors, fmt.Sprintf("station %s: %v", result.StationID, result.Err))
			continue
		}
		for _, listing := range result.Listings {
			existing, ok := byProperty[listing.PropertyID]
			if !ok {
				byProperty[listing.PropertyID] = listing
				listings = append(listings, listing)
				continue
			}
			for _, d := range listing.MetroDistances {
				existing.AddMetroDistance(d)
			}
		}
	}

	return listings, crawlErrors
}

// FlattenResults concatenates station results without deduplication, used
// when merging is disabled. Duplicate properties then appear once per station.
func FlattenResults(results []*StationResult) (listings []*models.Listing, crawlErrors []string) {
	for _, result := range results {
		if result.Err != nil {
			crawlErrors = append(crawlErrors, fmt.Sprintf("station %s: %v", result.StationID, result.Err))
			continue
		}
		listings = append(listings, result.Listings...)
	}
	return listings, crawlErrors
}
