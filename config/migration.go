package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/daniellavrushin/pqc-tracer/log"
)

type MigrationFunc func(*Config) error

// CurrentConfigVersion must equal len(migrationRegistry).
const (
	CurrentConfigVersion = 2
	MinSupportedVersion  = 0
)

var migrationRegistry = map[int]MigrationFunc{
	0: migrateV0to1,
	1: migrateV1to2,
}

// Migration: v0 -> v1 (add capture section)
func migrateV0to1(c *Config) error {
	log.Tracef("Migration v0->v1: Adding capture settings")

	c.Capture = DefaultConfig.Capture
	return nil
}

// Migration: v1 -> v2 (add body limit, preview length and IDNA toggle)
func migrateV1to2(c *Config) error {
	log.Tracef("Migration v1->v2: Adding body limit, preview and idna settings")

	if c.Probe.MaxBodyBytes == 0 {
		c.Probe.MaxBodyBytes = DefaultConfig.Probe.MaxBodyBytes
	}
	if c.Probe.PreviewChars == 0 {
		c.Probe.PreviewChars = DefaultConfig.Probe.PreviewChars
	}
	c.Probe.IDNA = DefaultConfig.Probe.IDNA
	return nil
}

func (c *Config) LoadWithMigration(path string) error {
	if path == "" {
		log.Tracef("config path is not defined")
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return log.Errorf("failed to stat config file: %v", err)
	}
	if info.IsDir() {
		return log.Errorf("config path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return log.Errorf("failed to read config file: %v", err)
	}

	// files written before versioning carry no "version" key
	c.Version = 0
	if err := json.Unmarshal(data, c); err != nil {
		return log.Errorf("failed to parse config file: %v", err)
	}

	if c.Version > CurrentConfigVersion {
		return log.Errorf("config version %d is newer than supported version %d", c.Version, CurrentConfigVersion)
	}

	if c.Version < CurrentConfigVersion {
		log.Infof("Config version %d is older than current version %d, migrating",
			c.Version, CurrentConfigVersion)
		if err := c.applyMigrations(c.Version); err != nil {
			return err
		}
	}

	return nil
}

// applyMigrations applies all migrations from startVersion to CurrentConfigVersion
func (c *Config) applyMigrations(startVersion int) error {
	if startVersion < MinSupportedVersion {
		return fmt.Errorf("config version %d is no longer supported", startVersion)
	}
	for v := startVersion; v < CurrentConfigVersion; v++ {
		migrationFunc, exists := migrationRegistry[v]
		if !exists {
			return fmt.Errorf("no migration path from version %d to %d", v, v+1)
		}

		log.Infof("Applying migration: v%d -> v%d", v, v+1)
		if err := migrationFunc(c); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
		c.Version = v + 1
	}
	return nil
}
