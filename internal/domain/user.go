package domain

import "time"

type User struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
	LastUpdated time.Time
}

func (u *User) Label() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// UserStatus is a presence record, one per user, overwritten wholesale
// on every status change.
type UserStatus struct {
	UserID   string
	IsOnline bool
	LastSeen time.Time
}

func OfflineStatus(userID string) UserStatus {
	return UserStatus{UserID: userID, IsOnline: false, LastSeen: time.Now()}
}
