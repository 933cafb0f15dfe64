package constants

const (
	AppName            = "evertodo"
	DefaultKeyringUser = "database-connection"
	DefaultConfigDir   = "~/.config/evertodo"
	Version            = "v0.2.0"

	// DateFormat is the standard calendar-date format used throughout the
	// application (YYYY-MM-DD). Occurrence and ledger keys always use it.
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time-of-day format (HH:MM), used for
	// notify_at values and display ordering.
	TimeFormat = "15:04"

	// LocalOwner is the owner scope used by the guest/local backend, where
	// all records belong to the device rather than an authenticated user.
	LocalOwner = "local"

	// DefaultUpcomingDays is the number of days after today covered by the
	// Upcoming view (the window is inclusive, so this yields 8 dates).
	DefaultUpcomingDays = 7

	// DefaultOverdueDays is the trailing window scanned by the Overdue view
	// for missed recurring occurrences, excluding today.
	DefaultOverdueDays = 7
)
