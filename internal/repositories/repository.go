package repositories

import (
	"sync"

	"gorm.io/gorm"

	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/pkg/database"
)

// Repository bundles the per-entity repositories of one event database.
type Repository struct {
	DB              *gorm.DB
	ParticipantRepo ParticipantRepository
	TeamRepo        TeamRepository
	PostRepo        PostRepository
	LocationRepo    LocationRepository
	CatalogRepo     CatalogRepository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:              db,
		ParticipantRepo: NewParticipantRepository(db),
		TeamRepo:        NewTeamRepository(db),
		PostRepo:        NewPostRepository(db),
		LocationRepo:    NewLocationRepository(db),
		CatalogRepo:     NewCatalogRepository(db),
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Participant{},
		&models.Team{},
		&models.Post{},
		&models.PostFile{},
		&models.Location{},
		&models.Challenge{},
		&models.Checkpoint{},
		&models.Notification{},
	)
}

// Manager resolves the Repository for an event, opening and migrating the
// event's database file on first use.
type Manager struct {
	mu       sync.Mutex
	registry *database.Registry
	repos    map[string]*Repository
}

func NewManager(registry *database.Registry) *Manager {
	return &Manager{
		registry: registry,
		repos:    make(map[string]*Repository),
	}
}

func (m *Manager) ForEvent(eventID string) (*Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if repo, ok := m.repos[eventID]; ok {
		return repo, nil
	}

	db, err := m.registry.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	repo := NewRepository(db)
	m.repos[eventID] = repo
	return repo, nil
}

// Reset drops all cached repositories and database handles, e.g. after a
// backup restore replaced the files on disk.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.repos = make(map[string]*Repository)
	m.registry.CloseAll()
}
