package db

// SQL fragments and formats used across multiple functions
const (
	// timeLayout is how timestamps are stored: local wall time, which is what
	// SQLite's date functions and the quota day boundaries both use.
	timeLayout = "2006-01-02 15:04:05"

	// sqlTimeFilterClause filters on a column against a relative local window
	sqlTimeFilterClause = "AND %s >= datetime('now', 'localtime', ?)"
)
