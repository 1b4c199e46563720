package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// AccessLevel is the role ordinal GitLab attaches to a project access token.
// Values are fixed by the GitLab API.
type AccessLevel int

const (
	AccessLevelGuest      AccessLevel = 10
	AccessLevelReporter   AccessLevel = 20
	AccessLevelDeveloper  AccessLevel = 30
	AccessLevelMaintainer AccessLevel = 40
	AccessLevelOwner      AccessLevel = 50
)

// String returns the lowercase label of the access level.
func (l AccessLevel) String() string {
	switch l {
	case AccessLevelGuest:
		return "guest"
	case AccessLevelReporter:
		return "reporter"
	case AccessLevelDeveloper:
		return "developer"
	case AccessLevelMaintainer:
		return "maintainer"
	case AccessLevelOwner:
		return "owner"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// Valid reports whether l is one of the GitLab-defined ordinals.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessLevelGuest, AccessLevelReporter, AccessLevelDeveloper, AccessLevelMaintainer, AccessLevelOwner:
		return true
	}
	return false
}

// UnmarshalJSON accepts only the integer ordinals GitLab sends.
func (l *AccessLevel) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("access_level: %w", err)
	}
	level := AccessLevel(n)
	if !level.Valid() {
		return fmt.Errorf("access_level: unknown value %d", n)
	}
	*l = level
	return nil
}

// MarshalJSON writes the ordinal back as an integer.
func (l AccessLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(l))
}

const dateLayout = "2006-01-02"

// Date is a calendar date without a time zone (GitLab's expires_at).
// The zero Date means the token never expires.
type Date struct {
	t time.Time
}

// NewDate returns the date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t: t}, nil
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

// UnmarshalJSON decodes "YYYY-MM-DD" or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	*d = parsed
	return nil
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// AccessToken is a project access token as returned by
// GET /api/v4/projects/:id/access_tokens. The owning project is implied by the
// request that fetched it.
type AccessToken struct {
	ID          int         `json:"id"`
	Scopes      []string    `json:"scopes"`
	Name        string      `json:"name"`
	ExpiresAt   Date        `json:"expires_at"`
	Active      bool        `json:"active"`
	Revoked     bool        `json:"revoked"`
	AccessLevel AccessLevel `json:"access_level"`
}
