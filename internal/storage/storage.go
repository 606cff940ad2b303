// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"statusbot/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateDestination(ctx context.Context, d *model.Destination) error
	GetDestination(ctx context.Context, guildID, channelID string) (*model.Destination, error)
	ListDestinations(ctx context.Context, guildID string) ([]model.Destination, error)
	ListAllDestinations(ctx context.Context) ([]model.Destination, error)
	DeleteDestination(ctx context.Context, id int64) error

	AddFilter(ctx context.Context, f *model.FilterRule) (bool, error)
	ListFilters(ctx context.Context, destinationID int64) ([]model.FilterRule, error)
	RemoveFilter(ctx context.Context, destinationID int64, pattern string) (bool, error)
	ClearFilters(ctx context.Context, destinationID int64) error

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error

	Close() error
}
