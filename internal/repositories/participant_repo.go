package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasnerz/letax/internal/models"
)

type ParticipantRepository interface {
	Create(participant *models.Participant) error
	// Upsert inserts the participant unless the id or email already exists.
	// Returns true when a new row was written. Used by the order import so
	// re-runs are idempotent.
	Upsert(participant *models.Participant) (bool, error)
	ByID(id string) (*models.Participant, error)
	ByEmail(email string) (*models.Participant, error)
	List() ([]models.Participant, error)
	Update(participant *models.Participant) error
	Delete(id string) error
}

type participantRepo struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) Create(participant *models.Participant) error {
	if participant == nil {
		return errors.New("participant cannot be nil")
	}
	return r.db.Create(participant).Error
}

func (r *participantRepo) Upsert(participant *models.Participant) (bool, error) {
	if participant == nil {
		return false, errors.New("participant cannot be nil")
	}

	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(participant)
	if result.Error != nil {
		return false, fmt.Errorf("failed to upsert participant: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *participantRepo) ByID(id string) (*models.Participant, error) {
	if id == "" {
		return nil, errors.New("participant ID cannot be empty")
	}

	var participant models.Participant
	if err := r.db.Where("id = ?", id).First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("participant not found with ID: %s", id)
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &participant, nil
}

func (r *participantRepo) ByEmail(email string) (*models.Participant, error) {
	if email == "" {
		return nil, errors.New("participant email cannot be empty")
	}

	var participant models.Participant
	if err := r.db.Where("email = ?", email).First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("participant not found with email: %s", email)
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &participant, nil
}

func (r *participantRepo) List() ([]models.Participant, error) {
	var participants []models.Participant
	if err := r.db.Order("name_web ASC").Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}

func (r *participantRepo) Update(participant *models.Participant) error {
	if participant == nil {
		return errors.New("participant cannot be nil")
	}
	return r.db.Save(participant).Error
}

func (r *participantRepo) Delete(id string) error {
	if id == "" {
		return errors.New("participant ID cannot be empty")
	}

	result := r.db.Where("id = ?", id).Delete(&models.Participant{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete participant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("participant not found with ID: %s", id)
	}
	return nil
}
