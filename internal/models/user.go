package models

import "time"

// User is a viewer authenticated through the Telegram login widget
type User struct {
	ID            uint64    `json:"id" gorm:"primaryKey" boltholdKey:"ID"`
	TelegramID    int64     `json:"telegramId" gorm:"uniqueIndex;not null" boltholdIndex:"TelegramID"`
	Username      string    `json:"username"`
	FirstName     string    `json:"firstName" gorm:"not null"`
	LastName      string    `json:"lastName,omitempty"`
	PhotoURL      string    `json:"photoUrl,omitempty"`
	AuthDate      time.Time `json:"authDate"`
	SessionExpiry time.Time `json:"sessionExpiry"`
	IsAdmin       bool      `json:"isAdmin"`
}

// Author is the public profile attached to comments
type Author struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName,omitempty"`
	PhotoURL  string `json:"photoUrl,omitempty"`
}

// Author returns the public part of the user profile
func (u *User) Author() Author {
	return Author{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		PhotoURL:  u.PhotoURL,
	}
}
