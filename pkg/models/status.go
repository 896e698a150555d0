package models

// JobStatus represents the lifecycle state of a crawl job
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"      // Job created but not started
	JobStatusRunning   JobStatus = "running"   // Crawl loop active
	JobStatusPaused    JobStatus = "paused"    // Stopped at a loop boundary with a snapshot saved
	JobStatusCompleted JobStatus = "completed" // Frontier drained; terminal
	JobStatusFailed    JobStatus = "failed"    // Fatal error (storage/config); terminal
)

// String implements fmt.Stringer for logging
func (s JobStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// Terminal returns true if no further transitions are possible
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsValid returns true if the status is a known operational value
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusIdle, JobStatusRunning, JobStatusPaused, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// FetchStatus records why a visited URL did or did not yield a document
type FetchStatus string

const (
	FetchStatusSuccess FetchStatus = "success" // Page fetched and extracted
	FetchStatusError   FetchStatus = "error"   // Fetch or extraction failed past the retry budget
	FetchStatusSkipped FetchStatus = "skipped" // Policy decision (robots, scope, filters)
)

// String implements fmt.Stringer for logging
func (s FetchStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s FetchStatus) IsValid() bool {
	switch s {
	case FetchStatusSuccess, FetchStatusError, FetchStatusSkipped:
		return true
	}
	return false
}
