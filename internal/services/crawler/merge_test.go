package crawler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/rentwatch/internal/models"
)

func listingWithFacet(propertyID, stationID, metroText string) *models.Listing {
	l := &models.Listing{PropertyID: propertyID, Title: "title-" + propertyID}
	l.AddMetroDistance(&models.MetroDistance{StationID: stationID, MetroValueText: metroText})
	return l
}

func TestMergeResults_DedupAcrossStations(t *testing.T) {
	results := []*StationResult{
		{StationID: "4232", Listings: []*models.Listing{
			listingWithFacet("100", "4232", "300公尺"),
			listingWithFacet("101", "4232", "400公尺"),
		}},
		{StationID: "4233", Listings: []*models.Listing{
			listingWithFacet("100", "4233", "650公尺"), // same property, second station
			listingWithFacet("102", "4233", "200公尺"),
		}},
	}

	merged, crawlErrors := MergeResults(results)
	require.Empty(t, crawlErrors)
	require.Len(t, merged, 3)

	// First-seen order is preserved.
	assert.Equal(t, "100", merged[0].PropertyID)
	assert.Equal(t, "101", merged[1].PropertyID)
	assert.Equal(t, "102", merged[2].PropertyID)

	// The duplicate absorbed the second station's facet.
	require.Len(t, merged[0].MetroDistances, 2)
	assert.Equal(t, "4232", merged[0].MetroDistances[0].StationID)
	assert.Equal(t, "4233", merged[0].MetroDistances[1].StationID)
}

func TestMergeResults_FailedStationBecomesError(t *testing.T) {
	results := []*StationResult{
		{StationID: "4232", Listings: []*models.Listing{listingWithFacet("100", "4232", "300公尺")}},
		{StationID: "4233", Err: errors.New("fetch failed after 3 attempts")},
	}

	merged, crawlErrors := MergeResults(results)
	assert.Len(t, merged, 1)
	require.Len(t, crawlErrors, 1)
	assert.Contains(t, crawlErrors[0], "4233")
}

func TestFlattenResults_KeepsDuplicates(t *testing.T) {
	results := []*StationResult{
		{StationID: "4232", Listings: []*models.Listing{listingWithFacet("100", "4232", "300公尺")}},
		{StationID: "4233", Listings: []*models.Listing{listingWithFacet("100", "4233", "650公尺")}},
	}

	flat, crawlErrors := FlattenResults(results)
	assert.Empty(t, crawlErrors)
	assert.Len(t, flat, 2, "merging disabled keeps one entry per station")
}
