package harvest

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
}

// OpenLedger opens (creating if needed) the run ledger and migrates its schema.
func OpenLedger(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&DatabaseRecord{}, &TableExportRecord{}, &RunRecord{}); err != nil {
		_ = closeDB(db)
		return nil, err
	}
	return db, nil
}

// OpenQueryDB opens an existing SQLite DB for querying without mutating schema.
func OpenQueryDB(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), gormConfig())
}

func closeDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
