package testevents

import "time"

// Config holds configuration for the injection run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumEvents  int           // Number of posts to generate
	Actors     int           // Number of distinct author DIDs
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // Wait before reading /stats
	OutputFile string        // Output file for posts; empty skips saving
	Verbose    bool          // Log every rejected submission
}

// AckResponse represents the response from event submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsAccepted   int
	EventsDuplicate  int
	EventsRejected   int
	EventsThrottled  int
	EventsFailed     int
	ServiceProcessed int64
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
