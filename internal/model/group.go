package model

import (
	"time"
	_ "time/tzdata" // group timezones must resolve on hosts without zoneinfo
)

// User is a chat participant.
type User struct {
	CreatedAt time.Time
	Username  string
	FirstName string
	ID        int64
}

// DisplayName returns the best available name for the user.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "user"
}

// Group is a shared chat whose members log expenses together.
type Group struct {
	CreatedAt        time.Time
	Title            string
	Currency         string
	Timezone         string
	ReminderTime     string
	LastReminderDate string
	ID               int64
	ReminderEnabled  bool
}

// Location resolves the group's timezone, falling back to fallback when the
// stored name is unknown.
func (g *Group) Location(fallback *time.Location) *time.Location {
	if g.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// Reminder asks a group to log the day's expenses.
type Reminder struct {
	LocalDate string
	Text      string
	GroupID   int64
}
