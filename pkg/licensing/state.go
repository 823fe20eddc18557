package licensing

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// State is the single local license state of this installation. It is
// created on first run with IsPro=false, mutated by every validation
// attempt, and only the daily-quota rollover ever resets any of it.
type State struct {
	ID         uint `gorm:"primaryKey"`
	IsPro      bool
	UserEmail  string
	LicenseKey string

	// When the decision was last confirmed against the store. IsPro is
	// only trustworthy for the grace period after this stamp.
	LastVerifiedAt *time.Time

	// Free-tier usage counters since LastResetDate (YYYY-MM-DD).
	DictationSeconds int
	TTSCharacters    int
	LastResetDate    string

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// StateStore persists the license state in a local SQLite file inside
// the application's data directory.
type StateStore struct {
	db *gorm.DB
}

// OpenStateStore opens (or creates) the local state database.
func OpenStateStore(path string) (*StateStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if err := db.AutoMigrate(&State{}); err != nil {
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	return &StateStore{db: db}, nil
}

// Load returns the persisted state, creating the initial free state on
// first install.
func (s *StateStore) Load() (*State, error) {
	state := State{
		ID:            1,
		IsPro:         false,
		LastResetDate: time.Now().Format("2006-01-02"),
	}
	result := s.db.Where("id = ?", 1).FirstOrCreate(&state)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load state: %w", result.Error)
	}
	return &state, nil
}

// Save persists the state.
func (s *StateStore) Save(state *State) error {
	state.ID = 1
	if err := s.db.Save(state).Error; err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *StateStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
