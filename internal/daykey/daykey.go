// Package daykey defines the canonical calendar-date key used to partition
// daily ledger entries. Every component that needs "today" goes through
// Today rather than formatting dates itself.
package daykey

import "time"

const layout = "2006-01-02"

// Key is a calendar date in the local timezone, formatted YYYY-MM-DD.
type Key string

// Today returns the current local calendar date. It is recomputed on every
// call so a session that crosses midnight sees the new day.
func Today() Key {
	return At(time.Now())
}

// At returns the date key for the given instant, in that instant's location.
func At(t time.Time) Key {
	return Key(t.Format(layout))
}

// Next returns the key for the following calendar day.
func (k Key) Next() Key {
	t, err := time.ParseInLocation(layout, string(k), time.Local)
	if err != nil {
		return k
	}
	return At(t.AddDate(0, 0, 1))
}

// Valid reports whether k parses as a YYYY-MM-DD date.
func (k Key) Valid() bool {
	_, err := time.ParseInLocation(layout, string(k), time.Local)
	return err == nil
}

func (k Key) String() string {
	return string(k)
}
