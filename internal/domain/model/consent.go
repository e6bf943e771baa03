package model

import "time"

// ConsentAcceptance records that a user agreed to a given EULA version.
type ConsentAcceptance struct {
	UserID     string
	Version    string
	AcceptedAt time.Time
	Language   string
}
