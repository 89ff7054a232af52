package models

// NotificationMeta is the per-listing policy decision overlay returned in the
// crawl result envelope.
type NotificationMeta struct {
	WillNotify        bool     `json:"willNotify"`
	IsSilent          bool     `json:"isSilent"`
	DistanceFromMRT   *float64 `json:"distanceFromMRT,omitempty"`
	DistanceThreshold *float64 `json:"distanceThreshold,omitempty"`
	IsFarFromMRT      bool     `json:"isFarFromMRT"`
}

// CrawlRental is a listing annotated with its notification decision.
type CrawlRental struct {
	Listing
	Notification NotificationMeta `json:"notification"`
}

// CrawlSummary describes the outcome of one orchestration.
type CrawlSummary struct {
	TotalRentals      int          `json:"totalRentals"`
	NewRentals        int          `json:"newRentals"`
	NotificationsSent bool         `json:"notificationsSent"`
	NotifyMode        NotifyMode   `json:"notifyMode"`
	FilteredMode      FilteredMode `json:"filteredMode"`
	MultiStation      bool         `json:"multiStation"`
	StationCount      int          `json:"stationCount"`
	Stations          []string     `json:"stations,omitempty"`
	CrawlErrors       []string     `json:"crawlErrors,omitempty"`
}

// CrawlResult is the envelope returned by the orchestrator: every observed
// listing with its metadata overlay, plus the run summary.
type CrawlResult struct {
	Rentals []*CrawlRental `json:"rentals"`
	Summary CrawlSummary   `json:"summary"`
}
