// Package sqlstore provides a repository backed by gorm. Postgres and
// SQLite are supported.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/repository"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// vehicleRow is the table layout.
type vehicleRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	VIN          string `gorm:"index;size:17"`
	Make         string
	Model        string
	Year         int
	LicensePlate string `gorm:"index"`
	TruckNumber  string
	Status       string `gorm:"size:32"`
	Source       string `gorm:"size:64"`
	Confidence   float64
	Dates        map[string]string `gorm:"serializer:json"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

// TableName implements gorm's tabler.
func (vehicleRow) TableName() string {
	return "fleet_vehicles"
}

func toRow(rec repository.VehicleRecord) vehicleRow {
	row := vehicleRow{
		ID:           rec.ID,
		VIN:          rec.VIN,
		Make:         rec.Make,
		Model:        rec.Model,
		Year:         rec.Year,
		LicensePlate: rec.LicensePlate,
		TruckNumber:  rec.TruckNumber,
		Status:       rec.Status,
		Source:       string(rec.Source),
		Confidence:   rec.Confidence,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	if len(rec.Dates) > 0 {
		row.Dates = make(map[string]string, len(rec.Dates))
		for k, v := range rec.Dates {
			row.Dates[string(k)] = v
		}
	}
	return row
}

func (row vehicleRow) record() repository.VehicleRecord {
	rec := repository.VehicleRecord{
		ID:           row.ID,
		VIN:          row.VIN,
		Make:         row.Make,
		Model:        row.Model,
		Year:         row.Year,
		LicensePlate: row.LicensePlate,
		TruckNumber:  row.TruckNumber,
		Status:       row.Status,
		Source:       vehicles.Source(row.Source),
		Confidence:   row.Confidence,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if len(row.Dates) > 0 {
		rec.Dates = make(map[vehicles.FieldName]string, len(row.Dates))
		for k, v := range row.Dates {
			rec.Dates[vehicles.FieldName(k)] = v
		}
	}
	return rec
}

// Repository persists records in the fleet_vehicles table.
type Repository struct {
	db    *gorm.DB
	clock func() time.Time
}

var (
	_ repository.Repository = (*Repository)(nil)
	_ repository.Clearer    = (*Repository)(nil)
	_ repository.Closer     = (*Repository)(nil)
)

// Open connects to the database and migrates the schema.
func Open(driver, dsn string) (*Repository, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.NewConfigError("store", fmt.Sprintf("unsupported sql driver %q", driver), nil)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.WrapResource("connect", "database", driver, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&vehicleRow{}); err != nil {
		return nil, errors.WrapResource("migrate", "table", "fleet_vehicles", err)
	}
	return &Repository{db: db, clock: time.Now}, nil
}

// Save implements repository.Repository.
func (r *Repository) Save(ctx context.Context, rec repository.VehicleRecord) (repository.VehicleRecord, error) {
	var stored repository.VehicleRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rec.ID != "" && rec.CreatedAt.IsZero() {
			var existing vehicleRow
			err := tx.Select("created_at").Where("id = ?", rec.ID).Take(&existing).Error
			switch {
			case err == nil:
				rec.CreatedAt = existing.CreatedAt
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}
		stored = repository.Prepare(rec, r.clock())
		row := toRow(stored)
		return tx.Save(&row).Error
	})
	if err != nil {
		return repository.VehicleRecord{}, errors.WrapPersistence("save", rec.ID, err)
	}
	return stored, nil
}

// Delete implements repository.Repository.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&vehicleRow{})
	if res.Error != nil {
		return errors.WrapPersistence("delete", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NewNotFoundError("vehicle record", id)
	}
	return nil
}

// List implements repository.Repository.
func (r *Repository) List(ctx context.Context) ([]repository.VehicleRecord, error) {
	var rows []vehicleRow
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, errors.WrapPersistence("list", "", err)
	}
	out := make([]repository.VehicleRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}

// Clear implements repository.Clearer.
func (r *Repository) Clear(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&vehicleRow{}).Error
	if err != nil {
		return errors.WrapPersistence("clear", "", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
