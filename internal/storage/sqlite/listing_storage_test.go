package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/rentwatch/internal/models"
)

func seedQueryWithSession(t *testing.T, m *Manager, queryID string) string {
	t.Helper()
	ctx := context.Background()
	_, err := m.QueryStorage().UpsertQuery(ctx, canonicalQuery(queryID, "1", nil, "", ""))
	require.NoError(t, err)
	sessionID, err := m.SessionStorage().OpenSession(ctx, queryID, "{}")
	require.NoError(t, err)
	return sessionID
}

func TestPersistListings_RoundTrip(t *testing.T) {
	m := newTestManager(t).(*Manager)
	ctx := context.Background()
	sessionID := seedQueryWithSession(t, m, "region1")

	listing := &models.Listing{
		PropertyID: "100",
		Title:      "信義區溫馨套房",
		Link:       "https://rent.591.com.tw/100",
		HouseType:  "獨立套房",
		Rooms:      "1房1廳",
		PriceText:  "20,000元/月",
		Tags:       []string{"可開伙"},
		ImageURLs:  []string{"https://img.591.com.tw/a.jpg"},
	}
	listing.AddMetroDistance(&models.MetroDistance{StationID: "4232", StationName: "善導寺站", MetroValueText: "300公尺"})

	require.NoError(t, m.ListingStorage().PersistListings(ctx, sessionID, "region1",
		[]*models.Listing{listing}, map[string]bool{"100": true}))

	existing, err := m.ListingStorage().GetExistingPropertyIDs(ctx, "region1")
	require.NoError(t, err)
	assert.True(t, existing["100"])

	loaded, err := m.ListingStorage().GetQueryListings(ctx, "region1", 10, time.Time{})
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, listing.Title, got.Title)
	assert.Equal(t, listing.Tags, got.Tags)
	assert.Equal(t, listing.ImageURLs, got.ImageURLs)
	require.Len(t, got.MetroDistances, 1)
	assert.Equal(t, "善導寺站", got.MetroDistances[0].StationName)
	assert.False(t, got.FirstSeenAt.IsZero())
}

func TestPersistListings_UnchangedHashOnlyRefreshes(t *testing.T) {
	m := newTestManager(t).(*Manager)
	ctx := context.Background()
	sessionID := seedQueryWithSession(t, m, "region1")

	listing := &models.Listing{PropertyID: "100", Title: "房子", HouseType: "獨立套房"}
	require.NoError(t, m.ListingStorage().PersistListings(ctx, sessionID, "region1",
		[]*models.Listing{listing}, map[string]bool{"100": true}))

	var firstSeen, lastSeen int64
	require.NoError(t, m.db.DB().QueryRow(
		`SELECT first_seen_at, last_seen_at FROM rentals WHERE property_id = '100'`).Scan(&firstSeen, &lastSeen))

	// Same content again, via a new session.
	session2, err := m.SessionStorage().OpenSession(ctx, "region1", "{}")
	require.NoError(t, err)
	same := &models.Listing{PropertyID: "100", Title: "房子", HouseType: "獨立套房"}
	require.NoError(t, m.ListingStorage().PersistListings(ctx, session2, "region1",
		[]*models.Listing{same}, map[string]bool{}))

	var firstSeen2, lastSeen2 int64
	require.NoError(t, m.db.DB().QueryRow(
		`SELECT first_seen_at, last_seen_at FROM rentals WHERE property_id = '100'`).Scan(&firstSeen2, &lastSeen2))

	assert.Equal(t, firstSeen, firstSeen2, "first_seen_at is stable")
	assert.GreaterOrEqual(t, lastSeen2, lastSeen)
}

func TestPersistListings_ChangedContentRewritesFacets(t *testing.T) {
	m := newTestManager(t).(*Manager)
	ctx := context.Background()
	sessionID := seedQueryWithSession(t, m, "region1")

	v1 := &models.Listing{PropertyID: "100", Title: "房子"}
	v1.AddMetroDistance(&models.MetroDistance{StationID: "4232", MetroValueText: "300公尺"})
	require.NoError(t, m.ListingStorage().PersistListings(ctx, sessionID, "region1",
		[]*models.Listing{v1}, map[string]bool{"100": true}))

	v2 := &models.Listing{PropertyID: "100", Title: "改名的房子"}
	v2.AddMetroDistance(&models.MetroDistance{StationID: "4233", MetroValueText: "650公尺"})
	require.NoError(t, m.ListingStorage().PersistListings(ctx, sessionID, "region1",
		[]*models.Listing{v2}, map[string]bool{}))

	loaded, err := m.ListingStorage().GetQueryListings(ctx, "region1", 10, time.Time{})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "改名的房子", loaded[0].Title)
	require.Len(t, loaded[0].MetroDistances, 1, "old facets are replaced, not appended")
	assert.Equal(t, "4233", loaded[0].MetroDistances[0].StationID)
}

func TestSessionLifecycle(t *testing.T) {
	m := newTestManager(t).(*Manager)
	ctx := context.Background()

	_, err := m.QueryStorage().UpsertQuery(ctx, canonicalQuery("region1", "1", nil, "", ""))
	require.NoError(t, err)

	sessionID, err := m.SessionStorage().OpenSession(ctx, "region1", `{"notifyMode":"filtered"}`)
	require.NoError(t, err)
	assert.Contains(t, sessionID, "sess_")

	require.NoError(t, m.SessionStorage().CloseSession(ctx, sessionID, &models.SessionSummary{
		StationCount:      2,
		MultiStation:      true,
		TotalListings:     5,
		NewListings:       2,
		NotificationsSent: true,
		ErrorCount:        1,
	}))

	sessions, err := m.SessionStorage().ListSessions(ctx, "region1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	got := sessions[0]
	assert.Equal(t, sessionID, got.ID)
	assert.True(t, got.MultiStation)
	assert.Equal(t, 5, got.TotalListings)
	assert.Equal(t, 2, got.NewListings)
	assert.True(t, got.NotificationsSent)
	assert.Equal(t, 1, got.ErrorCount)
	assert.False(t, got.FinishedAt.IsZero())
	assert.Equal(t, `{"notifyMode":"filtered"}`, got.Options)
}

func TestStatistics(t *testing.T) {
	m := newTestManager(t).(*Manager)
	ctx := context.Background()

	sessionID := seedQueryWithSession(t, m, "region1")
	require.NoError(t, m.ListingStorage().PersistListings(ctx, sessionID, "region1",
		[]*models.Listing{{PropertyID: "100", Title: "房子"}}, map[string]bool{"100": true}))
	require.NoError(t, m.SessionStorage().CloseSession(ctx, sessionID, &models.SessionSummary{
		TotalListings: 1, NewListings: 1, NotificationsSent: true, StationCount: 1,
	}))

	// A second session left open counts as interrupted.
	_, err := m.SessionStorage().OpenSession(ctx, "region1", "{}")
	require.NoError(t, err)

	require.NoError(t, m.QueryStorage().SetWatch(ctx, "region1", true, ""))

	stats, err := m.StatsStorage().Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TotalQueries)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.TotalRentals)
	assert.Equal(t, 1, stats.InterruptedSessions)
	assert.Equal(t, 1, stats.WatchedQueries)
	assert.Equal(t, 1, stats.NotificationsSessions)
	assert.Equal(t, map[string]int{"1": 1}, stats.QueriesByRegion)
	assert.Equal(t, 2, stats.CrawlFrequency.Last24Hours)
	assert.Zero(t, stats.CrawlFrequency.Older)
	assert.False(t, stats.LastCrawlAt.IsZero())
}
