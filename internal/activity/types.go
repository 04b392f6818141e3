package activity

import (
	"strings"

	"github.com/trackview/trackview/internal/timeutil"
)

// Shift classifies a session as inside or outside scheduled
// work hours.
type Shift string

const (
	ShiftOn  Shift = "onshift"
	ShiftOff Shift = "offshift"
)

// Category identifies a usage-breakdown bucket. Unknown keys
// from newer collectors are carried through CategoryUnknown
// rather than rejected.
type Category string

const (
	CategoryProductive Category = "productive"
	CategoryNeutral    Category = "neutral"
	CategoryWasted     Category = "wasted"
	CategoryUnknown    Category = "unknown"
)

// KnownCategories lists the closed category set in display
// order. Iteration over usage maps goes through this slice so
// output ordering never depends on map order.
var KnownCategories = []Category{
	CategoryProductive,
	CategoryNeutral,
	CategoryWasted,
}

// ParseCategory maps a raw category key to the closed enum.
// Unrecognized keys return CategoryUnknown and false.
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(s)) {
	case CategoryProductive:
		return CategoryProductive, true
	case CategoryNeutral:
		return CategoryNeutral, true
	case CategoryWasted:
		return CategoryWasted, true
	}
	return CategoryUnknown, false
}

// UsageEntry is time and visit attribution for one app or URL
// within a category.
type UsageEntry struct {
	TotalTime int      `json:"total_time"` // seconds
	Visits    []string `json:"visits,omitempty"`
}

// AbsentCounter marks a time counter missing from the raw
// document, distinct from any value a collector could write.
const AbsentCounter = -1 << 31

// RawSession is one session exactly as the collector wrote it.
// Counter fields are AbsentCounter when absent from the
// document so the normalizer can tell "missing" from an
// explicit zero.
type RawSession struct {
	SessionID      string
	StartTime      string // time of day, HH:MM:SS
	EndTime        string
	ProductiveTime int
	NeutralTime    int
	WastedTime     int
	IdleTime       int
	TotalTime      int
	HasTotalTime   bool
	SessionShift   string
	UsageBreakdown map[string]map[string]UsageEntry
}

// RawDateEntry groups the sessions recorded on one calendar day.
type RawDateEntry struct {
	Date     string // YYYY-MM-DD
	Sessions []RawSession
}

// RawUserDocument is the per-user nested document from the
// collector. Dates are unique within a user.
type RawUserDocument struct {
	Username     string
	AgentVersion string // collector build, may be empty
	Dates        []RawDateEntry
}

// Session is the canonical post-normalization form: counters
// non-negative, shift defaulted, usage maps present for every
// known category.
type Session struct {
	SessionID      string
	StartTime      string
	EndTime        string
	ProductiveTime int
	NeutralTime    int
	WastedTime     int
	IdleTime       int
	TotalTime      int
	Shift          Shift
	Usage          map[Category]map[string]UsageEntry
}

// DatedSession pairs a canonical session with its recorded
// date. Sessions spanning midnight stay attributed to this
// date; they are never split.
type DatedSession struct {
	Date    string // YYYY-MM-DD
	Session Session
}

// UserSession additionally carries the owning username, the
// shape the rollup engine folds over.
type UserSession struct {
	Username string
	Date     string
	Session  Session
}

// Flatten expands normalized user documents into the flat
// (username, date, session) sequence the aggregators consume.
func Flatten(users []NormalizedUser) []UserSession {
	var out []UserSession
	for _, u := range users {
		for _, ds := range u.Sessions {
			out = append(out, UserSession{
				Username: u.Username,
				Date:     ds.Date,
				Session:  ds.Session,
			})
		}
	}
	return out
}

// StartHour returns the hour component of the session start
// time, or -1 when the start time is absent or malformed.
// Collectors record start times as HH:MM:SS clock strings.
func (s Session) StartHour() int {
	return timeutil.Hour(s.StartTime)
}
