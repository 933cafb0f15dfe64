package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianstephens/evertodo/internal/constants"
	"github.com/julianstephens/evertodo/internal/models"
)

// marshalPattern encodes a recurring pattern as JSON for storage, or nil for
// a non-recurring todo.
func marshalPattern(p *models.RecurringPattern) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling recurring pattern: %w", err)
	}
	return string(data), nil
}

// unmarshalPattern decodes the recurring_pattern column. NULL means the todo
// is non-recurring.
func unmarshalPattern(raw sql.NullString) (*models.RecurringPattern, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var p models.RecurringPattern
	if err := json.Unmarshal([]byte(raw.String), &p); err != nil {
		return nil, fmt.Errorf("unmarshaling recurring pattern: %w", err)
	}
	return &p, nil
}

// formatScheduledDate renders a ledger key date for storage. Calendar dates
// cross the storage boundary as YYYY-MM-DD strings in both backends, so
// date-only comparisons stay on the local calendar rather than on instants.
func formatScheduledDate(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// parseScheduledDate reads a ledger key date back as a local calendar date.
func parseScheduledDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(constants.DateFormat, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing scheduled date %q: %w", s, err)
	}
	return t, nil
}
