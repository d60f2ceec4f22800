package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbMap = map[string]*gorm.DB{}
var syncLock sync.Mutex

// Open returns the handle for the sqlite file at path, opening it on first use.
// ":memory:" is allowed for tests.
func Open(path string) (*gorm.DB, error) {
	syncLock.Lock()
	defer syncLock.Unlock()
	if db, ok := dbMap[path]; ok {
		return db, nil
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	logConfig := logger.Config{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      logger.Warn,
		Colorful:      false,
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(log.New(logrus.StandardLogger().Writer(), "", 0), logConfig),
	})
	if err != nil {
		logrus.Errorf("connect db fail:%s", err.Error())
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers anyway
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	dbMap[path] = db
	return db, nil
}

func Close(path string) error {
	syncLock.Lock()
	defer syncLock.Unlock()
	db, ok := dbMap[path]
	if !ok {
		return nil
	}
	delete(dbMap, path)
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
