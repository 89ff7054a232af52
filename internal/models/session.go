package models

import "time"

// CrawlSession is one crawl event for a query. Opened at orchestration start,
// finalized at the end; a session without FinishedAt was interrupted by a
// failure and is treated as non-terminal by statistics.
type CrawlSession struct {
	ID                string    `json:"id"`
	QueryID           string    `json:"queryId"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt,omitempty"`
	StationCount      int       `json:"stationCount"`
	MultiStation      bool      `json:"multiStation"`
	TotalListings     int       `json:"totalListings"`
	NewListings       int       `json:"newListings"`
	NotificationsSent bool      `json:"notificationsSent"`
	ErrorCount        int       `json:"errorCount"`
	Options           string    `json:"options,omitempty"` // opaque JSON of the invoking policy
}

// SessionSummary is the terminal state written by CloseSession.
type SessionSummary struct {
	StationCount      int
	MultiStation      bool
	TotalListings     int
	NewListings       int
	NotificationsSent bool
	ErrorCount        int
}

// Statistics is the read-side aggregate served by the statistics endpoint.
type Statistics struct {
	TotalQueries          int                  `json:"totalQueries"`
	TotalSessions         int                  `json:"totalSessions"`
	TotalRentals          int                  `json:"totalRentals"`
	InterruptedSessions   int                  `json:"interruptedSessions"`
	WatchedQueries        int                  `json:"watchedQueries"`
	QueriesByRegion       map[string]int       `json:"queriesByRegion"`
	CrawlFrequency        CrawlFrequencyBucket `json:"crawlFrequency"`
	LastCrawlAt           time.Time            `json:"lastCrawlAt,omitempty"`
	NotificationsSessions int                  `json:"sessionsWithNotifications"`
}

// CrawlFrequencyBucket counts sessions by recency.
type CrawlFrequencyBucket struct {
	Last24Hours int `json:"last24h"`
	Last7Days   int `json:"last7d"`
	Last30Days  int `json:"last30d"`
	Older       int `json:"older"`
}
