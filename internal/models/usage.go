package models

import "time"

type UsageStatus struct {
	Count     int  `json:"count"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

// NewUsageStatus derives the remaining allowance from a count and a limit.
func NewUsageStatus(count, limit int) UsageStatus {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return UsageStatus{Count: count, Limit: limit, Remaining: remaining}
}

// APILimit mirrors a row of user_api_limits.
type APILimit struct {
	UserID    string    `json:"user_id"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const WSTypeUsageUpdate = "usage_update"
