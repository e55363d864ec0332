package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/kasnerz/letax/internal/models"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrActiveEventExists = errors.New("another event is already active")
)

// Event is one competition year. Each event owns a separate database file;
// the settings store only keeps the lifecycle metadata.
type Event struct {
	ID              string  `yaml:"id" json:"id"`
	Year            int     `yaml:"year" json:"year"`
	Status          string  `yaml:"status" json:"status"` // draft|ongoing|past
	Active          bool    `yaml:"active" json:"active"`
	StartDate       string  `yaml:"start_date" json:"start_date"`
	EndDate         string  `yaml:"end_date" json:"end_date"`
	BudgetPerPerson float64 `yaml:"budget_per_person" json:"budget_per_person"`
	ProductID       string  `yaml:"product_id" json:"product_id"`
	MapEmbedURL     string  `yaml:"map_embed_url" json:"map_embed_url"`
}

type values struct {
	Events              []Event  `yaml:"events"`
	ChallengeCategories []string `yaml:"challenge_categories"`
	FileSystem          string   `yaml:"file_system"` // local|s3
	FSBucket            string   `yaml:"fs_bucket"`
	FeedPageSize        int      `yaml:"feed_page_size"`
	InfoText            string   `yaml:"info_text"`
}

// Store is the per-deployment configuration surface, persisted as one YAML
// file. All mutation goes through Store so the file and the in-memory copy
// stay in sync.
type Store struct {
	mu   sync.RWMutex
	path string
	v    values
}

func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file. A missing file yields defaults, so a
// fresh deployment starts without manual setup.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v = values{
		FileSystem:   "local",
		FeedPageSize: 10,
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.v); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}
	if s.v.FeedPageSize <= 0 {
		s.v.FeedPageSize = 10
	}
	if s.v.FileSystem == "" {
		s.v.FileSystem = "local"
	}
	return nil
}

func (s *Store) save() error {
	data, err := yaml.Marshal(&s.v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Events returns all events, newest year first.
func (s *Store) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]Event, len(s.v.Events))
	copy(events, s.v.Events)
	sort.Slice(events, func(i, j int) bool { return events[i].Year > events[j].Year })
	return events
}

// EventByID looks up a single event.
func (s *Store) EventByID(id string) (*Event, error) {
	for _, e := range s.Events() {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
}

// DefaultEvent is the event shown to visitors: the active one, or the most
// recent past event when nothing is active.
func (s *Store) DefaultEvent() (*Event, error) {
	events := s.Events()

	for _, e := range events {
		if e.Active {
			e := e
			return &e, nil
		}
	}
	for _, e := range events {
		if e.Status == models.EventPast {
			e := e
			return &e, nil
		}
	}
	return nil, ErrEventNotFound
}

// CreateEvent registers a new draft competition year.
func (s *Store) CreateEvent(year int) (*Event, error) {
	event := Event{
		ID:     uuid.New().String()[:8],
		Year:   year,
		Status: models.EventDraft,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Events = append(s.v.Events, event)
	if err := s.save(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"event_id": event.ID, "year": year}).Info("created event")
	return &event, nil
}

// UpdateEvent overwrites an event's metadata. Setting a second event active
// is refused; this is a check on write, not a storage constraint.
func (s *Store) UpdateEvent(event Event) error {
	switch event.Status {
	case models.EventDraft, models.EventOngoing, models.EventPast:
	default:
		return fmt.Errorf("invalid event status: %s", event.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.v.Events {
		if e.ID == event.ID {
			idx = i
			continue
		}
		if event.Active && e.Active {
			return ErrActiveEventExists
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, event.ID)
	}

	s.v.Events[idx] = event
	return s.save()
}

func (s *Store) ChallengeCategories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.v.ChallengeCategories...)
}

func (s *Store) SetChallengeCategories(categories []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.ChallengeCategories = categories
	return s.save()
}

func (s *Store) FileSystem() (kind, bucket string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.FileSystem, s.v.FSBucket
}

func (s *Store) SetFileSystem(kind, bucket string) error {
	if kind != "local" && kind != "s3" {
		return fmt.Errorf("unknown file system: %s, use s3 or local", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.FileSystem = kind
	s.v.FSBucket = bucket
	return s.save()
}

func (s *Store) FeedPageSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.FeedPageSize
}

func (s *Store) InfoText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.InfoText
}

func (s *Store) SetInfoText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.InfoText = text
	return s.save()
}
