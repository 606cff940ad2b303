// Package model defines the domain types used across the application.
package model

import "time"

// Issue identifies a single service/platform pair currently reporting
// problems upstream. Comparison is exact and case-sensitive.
type Issue struct {
	Service  string
	Platform string
}

// Destination is a channel registered to receive status updates.
type Destination struct {
	ID        int64
	GuildID   string
	ChannelID string
	CreatedAt time.Time
}

// FilterRule is a single allow-list pattern attached to a destination.
// The pattern may carry JS-style trailing flags, e.g. "call of duty/i".
// A destination with no rules receives every update.
type FilterRule struct {
	ID            int64
	DestinationID int64
	Pattern       string
	CreatedAt     time.Time
}

// Keys of the runtime-adjustable settings.
const (
	SettingCheckInterval  = "check_interval"
	SettingCacheAge       = "cache_age"
	SettingUpdatePresence = "update_presence"
)

// Defaults and the shared minimum for interval-like settings, in seconds.
const (
	DefaultCheckInterval = 300
	DefaultCacheAge      = 300
	MinIntervalSeconds   = 60
)
