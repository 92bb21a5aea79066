package database

import (
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lmis-backend/internal/config"
	"lmis-backend/internal/models"
)

var logger = loggo.GetLogger("lmis.database")

var DB *gorm.DB

// Init connects to postgres, migrates the schema and seeds configuration
// settings from cfg.SettingsFile. Failures terminate the process.
func Init(cfg *config.Config) {
	db, err := Open(postgres.Open(cfg.DatabaseDSN))
	if err != nil {
		logger.Criticalf("cannot connect to database: %v", err)
		os.Exit(1)
	}
	if err := Migrate(db); err != nil {
		logger.Criticalf("migration failed: %v", err)
		os.Exit(1)
	}

	if cfg.SettingsFile != "" {
		values, err := config.LoadSettingsFile(cfg.SettingsFile)
		if err != nil {
			logger.Criticalf("%v", err)
			os.Exit(1)
		}
		created, err := SeedSettings(db, values)
		if err != nil {
			logger.Criticalf("seeding settings: %v", err)
			os.Exit(1)
		}
		logger.Infof("seeded %d configuration settings from %q", created, cfg.SettingsFile)
	}

	DB = db
	logger.Infof("database connected, migration complete")
}

// Open opens a gorm connection with SQL logging routed through loggo and
// driver errors translated to gorm's error values.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	sqlLogger := gormlogger.New(
		newGormWriter(sqlLogLevel),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  sqlLogLevel,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         sqlLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.GeographicLevel{},
		&models.GeographicZone{},
		&models.FacilityType{},
		&models.FacilityOperator{},
		&models.Facility{},
		&models.Program{},
		&models.ProductCategory{},
		&models.Product{},
		&models.ProgramProduct{},
		&models.FacilityTypeApprovedProduct{},
		&models.ProcessingSchedule{},
		&models.ProcessingPeriod{},
		&models.SupervisoryNode{},
		&models.RequisitionGroup{},
		&models.RequisitionGroupProgramSchedule{},
		&models.Right{},
		&models.Role{},
		&models.User{},
		&models.ConfigurationSetting{},
		&models.RequisitionTemplate{},
		&models.RequisitionTemplateColumn{},
		&models.Requisition{},
		&models.RequisitionLine{},
		&models.Comment{},
		&models.StatusChange{},
		&models.AuditLog{},
	)
	return errors.Annotate(err, "auto-migrating schema")
}

// SeedSettings inserts the settings whose keys are not stored yet and
// returns how many were created. Existing values are left untouched.
func SeedSettings(db *gorm.DB, values map[string]string) (int, error) {
	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			var count int64
			if err := tx.Model(&models.ConfigurationSetting{}).Where("key = ?", key).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&models.ConfigurationSetting{Key: key, Value: value}).Error; err != nil {
				return errors.Annotatef(err, "creating setting %q", key)
			}
			created++
		}
		return nil
	})
	return created, errors.Trace(err)
}

const sqlLogLevel = gormlogger.Warn

var gormLevels = map[gormlogger.LogLevel]loggo.Level{
	gormlogger.Error: loggo.ERROR,
	gormlogger.Warn:  loggo.WARNING,
	gormlogger.Info:  loggo.DEBUG,
}

// gormWriter routes gorm's messages to loggo. gorm filters by its own
// LogLevel before writing, so every message is logged at the loggo level
// matching it: at Warn only slow queries, warnings and errors arrive.
type gormWriter struct {
	logger loggo.Logger
	level  loggo.Level
}

func newGormWriter(level gormlogger.LogLevel) gormWriter {
	l, ok := gormLevels[level]
	if !ok {
		l = loggo.WARNING
	}
	return gormWriter{logger: loggo.GetLogger("lmis.database.sql"), level: l}
}

func (w gormWriter) Printf(format string, args ...any) {
	w.logger.Logf(w.level, format, args...)
}
