package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/logging"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// objectRow is the GORM model backing the Postgres driver. Metadata is
// kept as jsonb rather than a side table, since its key set varies by
// record kind.
type objectRow struct {
	Key      string         `gorm:"primaryKey;type:varchar(128)"`
	Body     []byte         `gorm:"type:bytea"`
	Metadata datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
}

func (objectRow) TableName() string { return "objects" }

// Postgres is the production Store driver: gorm.Open(postgres.Open(dsn)),
// a tuned connection pool, and AutoMigrate in place of hand-written DDL.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres opens a connection and migrates the objects table.
func NewPostgres(dsn string, logger logging.LeveledLogger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := db.AutoMigrate(&objectRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate objects table: %w", err)
	}

	logger.Infof("store: connected to postgres, objects table ready")
	return &Postgres{db: db}, nil
}

func (p *Postgres) Head(ctx context.Context, key string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&objectRow{}).Where("key = ?", key).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (*Object, error) {
	var row objectRow
	err := p.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toObject(&row)
}

func (p *Postgres) Put(ctx context.Context, key string, body []byte, metadata map[string]string) error {
	meta, err := fromMetadata(metadata)
	if err != nil {
		return err
	}
	row := objectRow{Key: key, Body: body, Metadata: meta}
	return p.db.WithContext(ctx).Save(&row).Error
}

func (p *Postgres) List(ctx context.Context, prefix string, includeMetadata bool) ([]ListedObject, error) {
	query := p.db.WithContext(ctx).Model(&objectRow{}).Where("key LIKE ?", prefix+"%")
	if !includeMetadata {
		query = query.Select("key")
	}

	var rows []objectRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]ListedObject, 0, len(rows))
	for _, row := range rows {
		entry := ListedObject{Key: row.Key}
		if includeMetadata {
			meta, err := toMetadata(row.Metadata)
			if err != nil {
				return nil, err
			}
			entry.Metadata = meta
		}
		out = append(out, entry)
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	return p.db.WithContext(ctx).Delete(&objectRow{}, "key = ?", key).Error
}

func toObject(row *objectRow) (*Object, error) {
	meta, err := toMetadata(row.Metadata)
	if err != nil {
		return nil, err
	}
	return &Object{Key: row.Key, Body: row.Body, Metadata: meta}, nil
}
