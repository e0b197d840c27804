package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/aibird-bridge/internal/engine"
)

// Gorm persists history in Postgres.
type Gorm struct {
	db *gorm.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&SessionRecord{}, &ShotRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) OpenSession(ctx context.Context, rec SessionRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	return g.db.WithContext(ctx).Create(&rec).Error
}

func (g *Gorm) CloseSession(ctx context.Context, final engine.Session) error {
	res := g.db.WithContext(ctx).
		Model(&SessionRecord{}).
		Where("id = ?", final.ID).
		Updates(closeFields(final, time.Now()))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *Gorm) RecordShot(ctx context.Context, rec ShotRecord) error {
	return g.db.WithContext(ctx).Create(&rec).Error
}

func (g *Gorm) Shots(ctx context.Context, sessionID string, limit int) ([]ShotRecord, error) {
	var sess SessionRecord
	err := g.db.WithContext(ctx).Select("id").First(&sess, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	q := g.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []ShotRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
