package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kasnerz/letax/internal/models"
)

type LocationRepository interface {
	// Append adds one fix to the log. The log is append-only; existing rows
	// are never updated.
	Append(location *models.Location) error
	// LastBefore returns the newest fix of the team with date <= at, or nil
	// when the team never shared a location by then.
	LastBefore(teamID string, at time.Time) (*models.Location, error)
	ByTeam(teamID string) ([]models.Location, error)
	Delete(id uint) error
}

type locationRepo struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepo{db: db}
}

func (r *locationRepo) Append(location *models.Location) error {
	if location == nil {
		return errors.New("location cannot be nil")
	}
	return r.db.Create(location).Error
}

func (r *locationRepo) LastBefore(teamID string, at time.Time) (*models.Location, error) {
	if teamID == "" {
		return nil, errors.New("team ID cannot be empty")
	}

	var location models.Location
	err := r.db.
		Where("team_id = ? AND date <= ?", teamID, at).
		Order("date DESC").
		First(&location).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last location: %w", err)
	}
	return &location, nil
}

func (r *locationRepo) ByTeam(teamID string) ([]models.Location, error) {
	if teamID == "" {
		return nil, errors.New("team ID cannot be empty")
	}

	var locations []models.Location
	if err := r.db.
		Where("team_id = ?", teamID).
		Order("date ASC").
		Find(&locations).Error; err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}

func (r *locationRepo) Delete(id uint) error {
	result := r.db.Delete(&models.Location{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete location: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("location not found with ID: %d", id)
	}
	return nil
}
