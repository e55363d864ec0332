package services

import (
	"fmt"
	"strings"

	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/settings"
)

// CatalogService manages the challenge and checkpoint catalogs. Every write
// invalidates the event's caches: point totals are derived at read time, so
// a catalog edit changes historical scores immediately.
type CatalogService struct {
	repos    *repositories.Manager
	settings *settings.Store
	scoring  *ScoringService
}

func NewCatalogService(repos *repositories.Manager, st *settings.Store, scoring *ScoringService) *CatalogService {
	return &CatalogService{repos: repos, settings: st, scoring: scoring}
}

func (s *CatalogService) Challenges(eventID string) ([]models.Challenge, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.CatalogRepo.Challenges()
}

func (s *CatalogService) Checkpoints(eventID string) ([]models.Checkpoint, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.CatalogRepo.Checkpoints()
}

// SaveChallenge inserts or updates one challenge. The category must belong
// to the configured category list when one is configured.
func (s *CatalogService) SaveChallenge(eventID string, challenge models.Challenge) error {
	challenge.Name = strings.TrimSpace(challenge.Name)
	if challenge.Name == "" {
		return fmt.Errorf("challenge name cannot be empty")
	}
	if categories := s.settings.ChallengeCategories(); len(categories) > 0 {
		if !contains(categories, challenge.Category) {
			return fmt.Errorf("unknown challenge category %q", challenge.Category)
		}
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}
	if _, err := repo.CatalogRepo.UpsertChallenges([]models.Challenge{challenge}); err != nil {
		return err
	}
	s.scoring.Invalidate(eventID)
	return nil
}

// SaveCheckpoint inserts or updates one checkpoint.
func (s *CatalogService) SaveCheckpoint(eventID string, checkpoint models.Checkpoint) error {
	checkpoint.Name = strings.TrimSpace(checkpoint.Name)
	if checkpoint.Name == "" {
		return fmt.Errorf("checkpoint name cannot be empty")
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}
	if _, err := repo.CatalogRepo.UpsertCheckpoints([]models.Checkpoint{checkpoint}); err != nil {
		return err
	}
	s.scoring.Invalidate(eventID)
	return nil
}

// DeleteChallenge removes a catalog entry. Existing posts for it remain and
// score zero from then on.
func (s *CatalogService) DeleteChallenge(eventID, name string) error {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}
	if err := repo.CatalogRepo.DeleteChallenge(name); err != nil {
		return err
	}
	s.scoring.Invalidate(eventID)
	return nil
}

func (s *CatalogService) DeleteCheckpoint(eventID, name string) error {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}
	if err := repo.CatalogRepo.DeleteCheckpoint(name); err != nil {
		return err
	}
	s.scoring.Invalidate(eventID)
	return nil
}

// ApplyDiff commits a bulk catalog edit in one transaction. The diff lists
// additions, modifications and removals explicitly; nothing is inferred from
// a full-table comparison.
func (s *CatalogService) ApplyDiff(eventID string, diff *repositories.CatalogDiff, table string) error {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}
	if err := repo.CatalogRepo.ApplyDiff(diff, table); err != nil {
		return err
	}
	s.scoring.Invalidate(eventID)
	return nil
}

func (s *CatalogService) Notifications(eventID string) ([]models.Notification, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.CatalogRepo.Notifications()
}

func (s *CatalogService) CreateNotification(eventID, text, typ string) (*models.Notification, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("notification text cannot be empty")
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	n := &models.Notification{Text: text, Type: typ}
	if err := repo.CatalogRepo.CreateNotification(n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *CatalogService) DeleteNotification(eventID string, id uint) error {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}
	return repo.CatalogRepo.DeleteNotification(id)
}
