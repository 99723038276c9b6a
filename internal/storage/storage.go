// Package storage opens the configured StatsStore.
package storage

import (
	"fmt"

	"github.com/tjfontaine/webcore/internal/core/ports"
	"github.com/tjfontaine/webcore/internal/pkg/config"
	"github.com/tjfontaine/webcore/internal/storage/memory"
	"github.com/tjfontaine/webcore/internal/storage/sqlite"
)

// Open returns the store selected by cfg.Type.
func Open(cfg config.StorageConfig) (ports.StatsStore, error) {
	switch cfg.Type {
	case "", "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("storage: sqlite path is required")
		}
		return sqlite.New(cfg.Path)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("storage: unsupported type %q", cfg.Type)
	}
}
