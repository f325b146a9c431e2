// Package activity maps a user's reported presence onto a coarse activity status
package activity

import (
	"time"

	ptime "rollcall/internal/platform/time"
)

// Status is the activity bucket of a number
type Status string

const (
	Online        Status = "online"
	Recently      Status = "recently"
	LastWeek      Status = "last_week"
	LastMonth     Status = "last_month"
	Offline       Status = "offline"
	LongAgo       Status = "long_ago"
	Unknown       Status = "unknown"
	NotRegistered Status = "not_registered"
	CheckFailed   Status = "check_failed"
)

// Statuses lists every status in display order
var Statuses = []Status{Online, Recently, LastWeek, LastMonth, Offline, LongAgo, Unknown, NotRegistered, CheckFailed}

// IsActive is true for statuses seen within the last week
func IsActive(s Status) bool {
	return s == Online || s == Recently || s == LastWeek
}

// Presence is what the remote service reports about when a user was last online.
// Kind is one of online, recently, last_week, last_month, offline or empty
type Presence struct {
	Kind      string     `json:"kind"`
	WasOnline *time.Time `json:"was_online,omitempty"`
}

// User is the profile returned for a registered number
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	IsPremium  bool      `json:"is_premium"`
	IsBot      bool      `json:"is_bot"`
	IsVerified bool      `json:"is_verified"`
	Presence   *Presence `json:"presence,omitempty"`
}

// Record is one activity check result
type Record struct {
	Phone      string     `json:"phone"`
	UserID     int64      `json:"user_id,omitempty"`
	Username   string     `json:"username,omitempty"`
	FirstName  string     `json:"first_name,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	IsPremium  bool       `json:"is_premium"`
	IsBot      bool       `json:"is_bot"`
	IsVerified bool       `json:"is_verified"`
	Status     Status     `json:"status"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	CheckTime  time.Time  `json:"check_time"`
}

// IsActive reports whether the record's status counts as active
func (r Record) IsActive() bool { return IsActive(r.Status) }

// FromPresence derives the status and an approximate last seen time
func FromPresence(p *Presence, now time.Time) (Status, *time.Time) {
	if p == nil {
		return Unknown, nil
	}
	switch p.Kind {
	case "online":
		return Online, ptime.Ptr(now)
	case "recently":
		return Recently, ptime.Ptr(now.AddDate(0, 0, -1))
	case "last_week":
		return LastWeek, ptime.Ptr(now.AddDate(0, 0, -7))
	case "last_month":
		return LastMonth, ptime.Ptr(now.AddDate(0, 0, -30))
	case "offline":
		if p.WasOnline != nil && !p.WasOnline.IsZero() {
			return Offline, ptime.Ptr(*p.WasOnline)
		}
		return LongAgo, nil
	case "":
		return Unknown, nil
	default:
		return LongAgo, nil
	}
}

// FromUser builds the record for phone. A nil user means the number is not registered
func FromUser(phone string, u *User, now time.Time) Record {
	if u == nil {
		return Record{Phone: phone, Status: NotRegistered, CheckTime: now}
	}
	st, seen := FromPresence(u.Presence, now)
	return Record{
		Phone:      phone,
		UserID:     u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsPremium:  u.IsPremium,
		IsBot:      u.IsBot,
		IsVerified: u.IsVerified,
		Status:     st,
		LastSeen:   seen,
		CheckTime:  now,
	}
}

// Failed is the record for a number whose check could not complete
func Failed(phone string, now time.Time) Record {
	return Record{Phone: phone, Status: CheckFailed, CheckTime: now}
}
