package repository

import "context"

// SettingRepository is the persisted configuration store.
type SettingRepository interface {
	ListAll(ctx context.Context) (map[string]string, error)
}
