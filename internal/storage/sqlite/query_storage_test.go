package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/interfaces"
	"github.com/ternarybob/rentwatch/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	manager, err := NewManager(common.GetLogger(), &common.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "rentwatch.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func canonicalQuery(id, region string, stations []string, priceMin, priceMax string) *models.CanonicalQuery {
	return &models.CanonicalQuery{
		QueryID:     id,
		Description: "test " + id,
		Params: models.QueryParams{
			Region:   region,
			Stations: stations,
			PriceMin: priceMin,
			PriceMax: priceMax,
		},
	}
}

func TestUpsertQuery_Idempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.QueryStorage().UpsertQuery(ctx, canonicalQuery("region1", "1", nil, "", ""))
	require.NoError(t, err)

	second, err := m.QueryStorage().UpsertQuery(ctx, canonicalQuery("region1", "1", nil, "", ""))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.FirstSeenAt, second.FirstSeenAt, "first_seen_at never moves")
	assert.True(t, second.LastSeenAt.Equal(first.LastSeenAt) || second.LastSeenAt.After(first.LastSeenAt))

	_, total, err := m.QueryStorage().ListQueries(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestGetQuery_NotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.QueryStorage().GetQuery(context.Background(), "region99")
	assert.ErrorIs(t, err, models.ErrQueryNotFound)
}

func TestListQueries_Filters(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.QueryStorage().UpsertQuery(ctx, canonicalQuery("region1", "1", nil, "", ""))
	require.NoError(t, err)
	_, err = m.QueryStorage().UpsertQuery(ctx, canonicalQuery("region3", "3", nil, "", ""))
	require.NoError(t, err)

	// Link one rental to region1 only.
	sessionID, err := m.SessionStorage().OpenSession(ctx, "region1", "{}")
	require.NoError(t, err)
	err = m.ListingStorage().PersistListings(ctx, sessionID, "region1",
		[]*models.Listing{{PropertyID: "100", Title: "房子"}}, map[string]bool{"100": true})
	require.NoError(t, err)

	byRegion, total, err := m.QueryStorage().ListQueries(ctx, &interfaces.QueryListOptions{Region: "3"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, byRegion, 1)
	assert.Equal(t, "region3", byRegion[0].ID)

	withRentals, total, err := m.QueryStorage().ListQueries(ctx, &interfaces.QueryListOptions{HasRentals: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, withRentals, 1)
	assert.Equal(t, "region1", withRentals[0].ID)
	assert.Equal(t, 1, withRentals[0].RentalCount)
	assert.Equal(t, 1, withRentals[0].SessionCount)
}

func TestFindSimilar(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	queries := []*models.CanonicalQuery{
		canonicalQuery("ref", "1", []string{"4232", "4233"}, "15000", "30000"),
		canonicalQuery("overlap-station", "1", []string{"4233", "4234"}, "", ""),
		canonicalQuery("overlap-price", "1", nil, "20000", "40000"),
		canonicalQuery("region-only", "1", []string{"9999"}, "", ""),
		canonicalQuery("other-region", "3", []string{"4233"}, "15000", "30000"),
	}
	for _, q := range queries {
		_, err := m.QueryStorage().UpsertQuery(ctx, q)
		require.NoError(t, err)
	}

	similar, err := m.QueryStorage().FindSimilar(ctx, "ref", 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(similar))
	for _, s := range similar {
		ids = append(ids, s.ID)
		assert.Greater(t, s.Score, 40)
		assert.LessOrEqual(t, s.Score, 100)
	}
	assert.ElementsMatch(t, []string{"overlap-station", "overlap-price"}, ids,
		"region alone and other regions are excluded")
}

func TestFindSimilar_UnknownReference(t *testing.T) {
	m := newTestManager(t)
	_, err := m.QueryStorage().FindSimilar(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, models.ErrQueryNotFound)
}

func TestSetWatchAndListWatched(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.QueryStorage().UpsertQuery(ctx, canonicalQuery("region1", "1", nil, "", ""))
	require.NoError(t, err)

	assert.ErrorIs(t, m.QueryStorage().SetWatch(ctx, "missing", true, ""), models.ErrQueryNotFound)

	require.NoError(t, m.QueryStorage().SetWatch(ctx, "region1", true, `{"notifyMode":"all"}`))
	watched, err := m.QueryStorage().ListWatched(ctx)
	require.NoError(t, err)
	require.Len(t, watched, 1)
	assert.Equal(t, "region1", watched[0].ID)
	assert.Equal(t, `{"notifyMode":"all"}`, watched[0].WatchOptions)

	require.NoError(t, m.QueryStorage().SetWatch(ctx, "region1", false, ""))
	watched, err = m.QueryStorage().ListWatched(ctx)
	require.NoError(t, err)
	assert.Empty(t, watched)
}

func TestClearQuery_CascadeKeepsSharedRentals(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, id := range []string{"region1", "region1_kind2"} {
		_, err := m.QueryStorage().UpsertQuery(ctx, canonicalQuery(id, "1", nil, "", ""))
		require.NoError(t, err)
	}

	// "shared" is observed by both queries, "own" only by region1.
	shared := &models.Listing{PropertyID: "shared", Title: "共同房源"}
	own := &models.Listing{PropertyID: "own", Title: "獨有房源"}
	own.AddMetroDistance(&models.MetroDistance{StationID: "4232", MetroValueText: "300公尺"})

	s1, err := m.SessionStorage().OpenSession(ctx, "region1", "{}")
	require.NoError(t, err)
	require.NoError(t, m.ListingStorage().PersistListings(ctx, s1, "region1",
		[]*models.Listing{shared, own}, map[string]bool{"shared": true, "own": true}))

	s2, err := m.SessionStorage().OpenSession(ctx, "region1_kind2", "{}")
	require.NoError(t, err)
	require.NoError(t, m.ListingStorage().PersistListings(ctx, s2, "region1_kind2",
		[]*models.Listing{shared}, map[string]bool{}))

	result, err := m.QueryStorage().ClearQuery(ctx, "region1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sessions)
	assert.Equal(t, 2, result.SessionLinks)
	assert.Equal(t, 2, result.QueryLinks)
	assert.Equal(t, 1, result.Rentals, "shared rental survives, own rental is orphaned")
	assert.Equal(t, 1, result.MetroDistances)

	_, err = m.QueryStorage().GetQuery(ctx, "region1")
	assert.ErrorIs(t, err, models.ErrQueryNotFound)

	remaining, err := m.ListingStorage().GetQueryListings(ctx, "region1_kind2", 10, time.Time{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "shared", remaining[0].PropertyID)
}

func TestClearQuery_NotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.QueryStorage().ClearQuery(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrQueryNotFound)
}
