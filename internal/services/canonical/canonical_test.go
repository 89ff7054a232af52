package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/models"
)

func newTestService() *Service {
	return NewService(common.GetLogger())
}

func TestCanonicalize_QueryID(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "kind 0 elided, stations sorted",
			url:      "https://rent.591.com.tw/list?region=1&kind=0&station=4233,4232&rentprice=15000,30000",
			expected: "region1_stations4232-4233_price15000,30000",
		},
		{
			name:     "region only",
			url:      "https://rent.591.com.tw/list?region=3",
			expected: "region3",
		},
		{
			name:     "explicit kind kept",
			url:      "https://rent.591.com.tw/list?region=1&kind=2",
			expected: "region1_kind2",
		},
		{
			name:     "open-ended price keeps empty side",
			url:      "https://rent.591.com.tw/list?region=1&rentprice=,30000",
			expected: "region1_price,30000",
		},
		{
			name:     "all facets in fixed order",
			url:      "https://rent.591.com.tw/list?other=newfloor&multiRoom=2,3&section=5&metro=129&station=4233&kind=1&region=1&rentprice=20000,40000",
			expected: "region1_kind1_stations4233_metro129_price20000,40000_section5_rooms2,3_floornewfloor",
		},
		{
			name:     "relative listings URL accepted",
			url:      "/list?region=1&station=4232",
			expected: "region1_stations4232",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical, err := svc.Canonicalize(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, canonical.QueryID)
		})
	}
}

func TestCanonicalize_Equivalence(t *testing.T) {
	svc := newTestService()

	// Every member of the equivalence set of a URL collapses to the same id:
	// station ordering, csv-vs-repeated keys, default-value presence.
	equivalent := []string{
		"https://rent.591.com.tw/list?region=1&station=100&station=200",
		"https://rent.591.com.tw/list?station=200,100&region=1",
		"https://rent.591.com.tw/list?region=1&kind=0&station=100,200",
		"https://rent.591.com.tw/list?station=200&station=100&region=1&kind=0",
	}

	first, err := svc.Canonicalize(equivalent[0])
	require.NoError(t, err)

	for _, u := range equivalent[1:] {
		canonical, err := svc.Canonicalize(u)
		require.NoError(t, err)
		assert.Equal(t, first.QueryID, canonical.QueryID, "url %s", u)
		assert.Equal(t, first.CanonicalURL, canonical.CanonicalURL, "url %s", u)
	}

	// The variant set covers both station forms crossed with both kind forms.
	assert.Len(t, first.EquivalentURLs, 4)
	assert.Contains(t, first.EquivalentURLs, "https://rent.591.com.tw/list?region=1&station=100,200")
	assert.Contains(t, first.EquivalentURLs, "https://rent.591.com.tw/list?region=1&station=100&station=200")
	assert.Contains(t, first.EquivalentURLs, "https://rent.591.com.tw/list?kind=0&region=1&station=100,200")

	// Every variant canonicalizes back to the same id.
	for _, u := range first.EquivalentURLs {
		canonical, err := svc.Canonicalize(u)
		require.NoError(t, err)
		assert.Equal(t, first.QueryID, canonical.QueryID, "variant %s", u)
	}
}

func TestCanonicalize_StationSortStability(t *testing.T) {
	svc := newTestService()

	a, err := svc.Canonicalize("https://rent.591.com.tw/list?region=1&station=3,1,2")
	require.NoError(t, err)
	b, err := svc.Canonicalize("https://rent.591.com.tw/list?region=1&station=2&station=1&station=3")
	require.NoError(t, err)

	assert.Equal(t, a.QueryID, b.QueryID)
	assert.Equal(t, []string{"1", "2", "3"}, a.Params.Stations)
	assert.Equal(t, []string{"1", "2", "3"}, b.Params.Stations)
}

func TestCanonicalize_Errors(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		name     string
		url      string
		expected error
	}{
		{"wrong host", "https://example.com/list?region=1", models.ErrInvalidURL},
		{"wrong path", "https://rent.591.com.tw/detail/12345", models.ErrInvalidURL},
		{"missing region", "https://rent.591.com.tw/list?station=4232", models.ErrInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Canonicalize(tt.url)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		params   models.QueryParams
		expected string
	}{
		{
			name:     "multi station counts stations",
			params:   models.QueryParams{Region: "1", Stations: []string{"4232", "4233"}},
			expected: "台北市 近2個捷運站",
		},
		{
			name:     "single known station named",
			params:   models.QueryParams{Region: "1", Stations: []string{"4233"}},
			expected: "台北市 近忠孝新生站",
		},
		{
			name:     "single unknown station falls back to id",
			params:   models.QueryParams{Region: "1", Stations: []string{"9999"}},
			expected: "台北市 近捷運站9999",
		},
		{
			name:     "kind and price range",
			params:   models.QueryParams{Region: "3", Kind: "2", PriceMin: "15000", PriceMax: "30000"},
			expected: "新北市 獨立套房 15000-30000元",
		},
		{
			name:     "open-ended price",
			params:   models.QueryParams{Region: "1", PriceMax: "20000"},
			expected: "台北市 20000元以下",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Describe(tt.params))
		})
	}
}
