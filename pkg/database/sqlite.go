package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open opens (and creates if needed) a SQLite database at the given path.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	return db, nil
}

// Registry hands out one database handle per event. Each event owns a
// separate database file under <dataDir>/db/<eventID>/database.db.
type Registry struct {
	mu      sync.Mutex
	dataDir string
	dbs     map[string]*gorm.DB
}

func NewRegistry(dataDir string) *Registry {
	return &Registry{
		dataDir: dataDir,
		dbs:     make(map[string]*gorm.DB),
	}
}

// Path returns the database file location for an event.
func (r *Registry) Path(eventID string) string {
	return filepath.Join(r.dataDir, "db", eventID, "database.db")
}

// ForEvent returns the handle for an event, opening the file lazily.
func (r *Registry) ForEvent(eventID string) (*gorm.DB, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.dbs[eventID]; ok {
		return db, nil
	}

	db, err := Open(r.Path(eventID))
	if err != nil {
		return nil, err
	}
	r.dbs[eventID] = db

	return db, nil
}

// CloseAll drops every cached handle. Used before a backup restore so the
// restored files are reopened fresh.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, db := range r.dbs {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		delete(r.dbs, id)
	}
}
