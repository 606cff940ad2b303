package storage

import (
	"context"
	"fmt"
	"strconv"
)

// IntSetting reads a settings value as an integer, falling back to def
// when the key is unset.
func IntSetting(ctx context.Context, s Storage, key string, def int) (int, error) {
	raw, ok, err := s.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", key, err)
	}
	return v, nil
}

// BoolSetting reads a settings value as a boolean ("1" is true),
// falling back to def when the key is unset.
func BoolSetting(ctx context.Context, s Storage, key string, def bool) (bool, error) {
	raw, ok, err := s.GetSetting(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return def, nil
	}
	return raw == "1", nil
}

// SetBoolSetting stores a boolean as "1"/"0".
func SetBoolSetting(ctx context.Context, s Storage, key string, v bool) error {
	raw := "0"
	if v {
		raw = "1"
	}
	return s.SetSetting(ctx, key, raw)
}
