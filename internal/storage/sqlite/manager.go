package sqlite

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/interfaces"
)

// Manager implements the StorageManager interface
type Manager struct {
	db      *SQLiteDB
	query   interfaces.QueryStorage
	session interfaces.SessionStorage
	listing interfaces.ListingStorage
	stats   interfaces.StatsStorage
	logger  arbor.ILogger
}

// NewManager creates a new SQLite storage manager
func NewManager(logger arbor.ILogger, config *common.SQLiteConfig) (interfaces.StorageManager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:      db,
		query:   NewQueryStorage(db, logger),
		session: NewSessionStorage(db, logger),
		listing: NewListingStorage(db, logger),
		stats:   NewStatsStorage(db, logger),
		logger:  logger,
	}, nil
}

// QueryStorage returns the query storage interface
func (m *Manager) QueryStorage() interfaces.QueryStorage {
	return m.query
}

// SessionStorage returns the crawl session storage interface
func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.session
}

// ListingStorage returns the rental listing storage interface
func (m *Manager) ListingStorage() interfaces.ListingStorage {
	return m.listing
}

// StatsStorage returns the read-side statistics interface
func (m *Manager) StatsStorage() interfaces.StatsStorage {
	return m.stats
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
