package domain

import (
	"context"
	"time"
)

// PreferenceStore persists independent key-value preference cells.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) ([]Preference, error)
	Close() error
}

// Preference is one stored cell.
type Preference struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
