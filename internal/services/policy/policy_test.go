package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/models"
)

func newTestEngine() *Engine {
	return NewEngine(80, common.GetLogger())
}

func floatPtr(v float64) *float64 { return &v }

func TestParseDistance(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name     string
		text     string
		expected *float64
	}{
		{"meters", "距忠孝新生站500公尺", floatPtr(500)},
		{"meters with space", "500 公尺", floatPtr(500)},
		{"walking minutes", "步行5分鐘", floatPtr(400)},
		{"no distance", "近捷運", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.ParseDistance(tt.text)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.expected, *got)
		})
	}
}

func TestEffectiveDistance_MinAcrossFacets(t *testing.T) {
	engine := newTestEngine()

	listing := &models.Listing{MetroValueText: "800公尺"}
	listing.AddMetroDistance(&models.MetroDistance{StationID: "4232", MetroValueText: "650公尺"})
	listing.AddMetroDistance(&models.MetroDistance{StationID: "4233", MetroValueText: "5分鐘"})

	engine.ResolveDistances(listing)
	got := engine.EffectiveDistance(listing)
	require.NotNil(t, got)
	assert.Equal(t, float64(400), *got, "nearest station wins")
}

func TestEffectiveDistance_PrimaryFallback(t *testing.T) {
	engine := newTestEngine()

	listing := &models.Listing{MetroValueText: "300公尺"}
	got := engine.EffectiveDistance(listing)
	require.NotNil(t, got)
	assert.Equal(t, float64(300), *got)

	assert.Nil(t, engine.EffectiveDistance(&models.Listing{}))
}

func TestEvaluate_PolicyTable(t *testing.T) {
	engine := newTestEngine()
	threshold := floatPtr(600)

	near := func() *models.Listing { return &models.Listing{MetroValueText: "300公尺"} }
	far := func() *models.Listing { return &models.Listing{MetroValueText: "900公尺"} }
	unknown := func() *models.Listing { return &models.Listing{MetroValueText: "近捷運"} }

	tests := []struct {
		name         string
		notifyMode   models.NotifyMode
		filteredMode models.FilteredMode
		listing      *models.Listing
		wantNotify   bool
		wantSilent   bool
		wantFar      bool
	}{
		{"all notifies near", models.NotifyModeAll, models.FilteredModeSilent, near(), true, false, false},
		{"all notifies far", models.NotifyModeAll, models.FilteredModeSilent, far(), true, false, true},
		{"none suppresses near", models.NotifyModeNone, models.FilteredModeSilent, near(), false, false, false},
		{"none suppresses far", models.NotifyModeNone, models.FilteredModeSilent, far(), false, false, true},
		{"filtered notifies near", models.NotifyModeFiltered, models.FilteredModeSilent, near(), true, false, false},
		{"filtered far silent mode notifies silently", models.NotifyModeFiltered, models.FilteredModeSilent, far(), true, true, true},
		{"filtered far normal mode suppresses", models.NotifyModeFiltered, models.FilteredModeNormal, far(), false, false, true},
		{"filtered far none mode suppresses", models.NotifyModeFiltered, models.FilteredModeNone, far(), false, false, true},
		{"unknown distance never far", models.NotifyModeFiltered, models.FilteredModeNormal, unknown(), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &models.CrawlOptions{
				NotifyMode:   tt.notifyMode,
				FilteredMode: tt.filteredMode,
				Filter:       models.FilterOptions{MRTDistanceThreshold: threshold},
			}
			meta := engine.Evaluate(opts, tt.listing)
			assert.Equal(t, tt.wantNotify, meta.WillNotify, "willNotify")
			assert.Equal(t, tt.wantSilent, meta.IsSilent, "isSilent")
			assert.Equal(t, tt.wantFar, meta.IsFarFromMRT, "isFarFromMRT")
		})
	}
}

func TestEvaluate_NoThresholdNeverFar(t *testing.T) {
	engine := newTestEngine()

	opts := &models.CrawlOptions{
		NotifyMode:   models.NotifyModeFiltered,
		FilteredMode: models.FilteredModeNormal,
	}
	meta := engine.Evaluate(opts, &models.Listing{MetroValueText: "2000公尺"})

	assert.True(t, meta.WillNotify)
	assert.False(t, meta.IsFarFromMRT)
	require.NotNil(t, meta.DistanceFromMRT)
	assert.Equal(t, float64(2000), *meta.DistanceFromMRT)
	assert.Nil(t, meta.DistanceThreshold)
}
