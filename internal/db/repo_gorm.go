package db

import (
	"context"

	"github.com/go-faster/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres.
func Open(dsn string) (*gorm.DB, error) {
	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	return database, nil
}

// GormRepository stores profiles in the luma_calendar_profiles table.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository migrates the profile table and returns the repository.
func NewGormRepository(database *gorm.DB) (*GormRepository, error) {
	if err := database.AutoMigrate(&CalendarProfile{}); err != nil {
		return nil, errors.Wrap(err, "migrate luma_calendar_profiles")
	}
	return &GormRepository{db: database}, nil
}

// Load returns profiles in their stored order.
func (r *GormRepository) Load(ctx context.Context) (*ProfileSnapshot, error) {
	var rows []CalendarProfile
	if err := r.db.WithContext(ctx).Order("position").Order("name").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list profiles")
	}
	snap := &ProfileSnapshot{Calendars: rows}
	for i := range snap.Calendars {
		if snap.Calendars[i].IsDefault && snap.DefaultCalendar == "" {
			snap.DefaultCalendar = snap.Calendars[i].Name
		}
		snap.Calendars[i].Position = i
	}
	if err := openSnapshot(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Save replaces the table contents with snap in one transaction.
func (r *GormRepository) Save(ctx context.Context, snap *ProfileSnapshot) error {
	sealed, err := sealSnapshot(snap)
	if err != nil {
		return err
	}
	for i := range sealed.Calendars {
		sealed.Calendars[i].Position = i
		sealed.Calendars[i].IsDefault = sealed.Calendars[i].Name == sealed.DefaultCalendar
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&CalendarProfile{}).Error; err != nil {
			return errors.Wrap(err, "clear profiles")
		}
		if len(sealed.Calendars) == 0 {
			return nil
		}
		if err := tx.Create(&sealed.Calendars).Error; err != nil {
			return errors.Wrap(err, "insert profiles")
		}
		return nil
	})
}
