package migration

import (
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gorm.io/gorm"
)

// RunMigrations applies embedded up migrations in filename order,
// recording applied versions in schema_migrations.
func RunMigrations(conn *gorm.DB) error {
	if err := conn.Exec(
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	).Error; err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		applied, err := isApplied(conn, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		contents, err := fs.ReadFile(embeddedMigrations, path.Join(migrationsDir, name))
		if err != nil {
			return err
		}
		err = conn.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(contents)).Error; err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
			if err := tx.Exec(
				`INSERT INTO schema_migrations (version) VALUES (?)`, name,
			).Error; err != nil {
				return fmt.Errorf("record %s: %w", name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func isApplied(conn *gorm.DB, version string) (bool, error) {
	var count int64
	err := conn.Raw(
		`SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
