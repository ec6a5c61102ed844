package journal

import "time"

// SessionRecord summarizes one governed-media session in the journal.
type SessionRecord struct {
	SessionID   string
	MediaID     string
	StartedAt   time.Time
	Transitions int
}
