package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kasnerz/letax/internal/models"
)

type TeamRepository interface {
	Create(team *models.Team) error
	Update(team *models.Team) error
	ByID(teamID string) (*models.Team, error)
	ByName(name string) (*models.Team, error)
	// ForParticipant finds the team a participant belongs to, or nil.
	ForParticipant(paxID string) (*models.Team, error)
	List() ([]models.Team, error)
	WithAwards() ([]models.Team, error)
	SetAward(teamID, award string) error
	SetMarker(teamID, color, iconColor, icon string) error
	SetVisibility(teamID string, visible bool) error
}

type teamRepo struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepo{db: db}
}

func (r *teamRepo) Create(team *models.Team) error {
	if team == nil {
		return errors.New("team cannot be nil")
	}

	var existing models.Team
	if err := r.db.Where("name = ?", team.Name).First(&existing).Error; err == nil {
		return fmt.Errorf("team with name '%s' already exists", team.Name)
	}

	return r.db.Create(team).Error
}

func (r *teamRepo) Update(team *models.Team) error {
	if team == nil {
		return errors.New("team cannot be nil")
	}

	var existing models.Team
	if err := r.db.Where("team_id = ?", team.TeamID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("team not found with ID: %s", team.TeamID)
		}
		return fmt.Errorf("failed to check team existence: %w", err)
	}

	if team.Name != existing.Name {
		var conflict models.Team
		if err := r.db.Where("name = ? AND team_id != ?", team.Name, team.TeamID).First(&conflict).Error; err == nil {
			return fmt.Errorf("team with name '%s' already exists", team.Name)
		}
	}

	return r.db.Save(team).Error
}

func (r *teamRepo) ByID(teamID string) (*models.Team, error) {
	if teamID == "" {
		return nil, errors.New("team ID cannot be empty")
	}

	var team models.Team
	if err := r.db.Where("team_id = ?", teamID).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("team not found with ID: %s", teamID)
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &team, nil
}

func (r *teamRepo) ByName(name string) (*models.Team, error) {
	if name == "" {
		return nil, errors.New("team name cannot be empty")
	}

	var team models.Team
	if err := r.db.Where("name = ?", name).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("team not found with name: %s", name)
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &team, nil
}

func (r *teamRepo) ForParticipant(paxID string) (*models.Team, error) {
	if paxID == "" {
		return nil, nil
	}

	var team models.Team
	err := r.db.
		Where("member1 = ? OR member2 = ? OR member3 = ?", paxID, paxID, paxID).
		First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team for participant: %w", err)
	}
	return &team, nil
}

func (r *teamRepo) List() ([]models.Team, error) {
	var teams []models.Team
	if err := r.db.Order("name ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

func (r *teamRepo) WithAwards() ([]models.Team, error) {
	var teams []models.Team
	if err := r.db.Where("award IS NOT NULL AND award != ''").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("failed to list awarded teams: %w", err)
	}
	return teams, nil
}

func (r *teamRepo) SetAward(teamID, award string) error {
	return r.updateColumns(teamID, map[string]interface{}{"award": award})
}

func (r *teamRepo) SetMarker(teamID, color, iconColor, icon string) error {
	return r.updateColumns(teamID, map[string]interface{}{
		"color":      color,
		"icon_color": iconColor,
		"icon":       icon,
	})
}

func (r *teamRepo) SetVisibility(teamID string, visible bool) error {
	return r.updateColumns(teamID, map[string]interface{}{"visible": visible})
}

func (r *teamRepo) updateColumns(teamID string, values map[string]interface{}) error {
	if teamID == "" {
		return errors.New("team ID cannot be empty")
	}

	result := r.db.Model(&models.Team{}).Where("team_id = ?", teamID).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update team: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("team not found with ID: %s", teamID)
	}
	return nil
}
