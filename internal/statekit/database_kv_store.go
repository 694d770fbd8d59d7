package statekit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DatabaseKeyValueStore persists client state using GORM. It is the durable
// rendition of the per-origin storage medium: values written here survive
// process restarts.
type DatabaseKeyValueStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseKeyValueStore) Driver() string {
	return store.driverLabel
}

type clientStateRecord struct {
	StateKey      string `gorm:"column:state_key;primaryKey"`
	StateValue    string `gorm:"column:state_value;not null"`
	UpdatedAtUnix int64  `gorm:"column:updated_at_unix;not null"`
}

func (clientStateRecord) TableName() string {
	return "client_state"
}

// NewDatabaseKeyValueStore constructs a GORM-backed store from a database URL
// (postgres:// or sqlite://).
func NewDatabaseKeyValueStore(ctx context.Context, databaseURL string) (*DatabaseKeyValueStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("state_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("state_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&clientStateRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("state_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseKeyValueStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (store *DatabaseKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("state_store.get.%s: %w", store.driverLabel, ErrEmptyKey)
	}
	var record clientStateRecord
	err := store.db.WithContext(ctx).Where("state_key = ?", key).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("state_store.get.%s: %w", store.driverLabel, ErrKeyNotFound)
		}
		return "", fmt.Errorf("state_store.get.%s: %w", store.driverLabel, err)
	}
	return record.StateValue, nil
}

// Set stores value under key, overwriting any previous value.
func (store *DatabaseKeyValueStore) Set(ctx context.Context, key string, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("state_store.set.%s: %w", store.driverLabel, ErrEmptyKey)
	}
	record := clientStateRecord{
		StateKey:      key,
		StateValue:    value,
		UpdatedAtUnix: time.Now().UTC().Unix(),
	}
	err := store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"state_value", "updated_at_unix"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("state_store.set.%s: %w", store.driverLabel, err)
	}
	return nil
}

// Remove deletes the value stored under key. Removing a missing key succeeds.
func (store *DatabaseKeyValueStore) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("state_store.remove.%s: %w", store.driverLabel, ErrEmptyKey)
	}
	err := store.db.WithContext(ctx).Where("state_key = ?", key).Delete(&clientStateRecord{}).Error
	if err != nil {
		return fmt.Errorf("state_store.remove.%s: %w", store.driverLabel, err)
	}
	return nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("state_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("state_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("state_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("state_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
