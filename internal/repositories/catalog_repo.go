package repositories

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasnerz/letax/internal/models"
)

// ErrActionNotFound is a catalog lookup miss. Scoring treats it as zero
// points, not as a failure.
var ErrActionNotFound = errors.New("action not found")

// CatalogDiff is an explicit bulk edit of one catalog table: rows to insert,
// rows to overwrite (matched by name) and names to delete. The diff comes
// from the client; the persistence layer never infers changes.
type CatalogDiff struct {
	AddedChallenges     []models.Challenge  `json:"added_challenges,omitempty"`
	ModifiedChallenges  []models.Challenge  `json:"modified_challenges,omitempty"`
	AddedCheckpoints    []models.Checkpoint `json:"added_checkpoints,omitempty"`
	ModifiedCheckpoints []models.Checkpoint `json:"modified_checkpoints,omitempty"`
	Removed             []string            `json:"removed,omitempty"`
}

type CatalogRepository interface {
	// Challenges
	CreateChallenge(challenge *models.Challenge) error
	UpdateChallenge(challenge *models.Challenge) error
	DeleteChallenge(name string) error
	Challenges() ([]models.Challenge, error)
	UpsertChallenges(challenges []models.Challenge) (int, error)

	// Checkpoints
	CreateCheckpoint(checkpoint *models.Checkpoint) error
	UpdateCheckpoint(checkpoint *models.Checkpoint) error
	DeleteCheckpoint(name string) error
	Checkpoints() ([]models.Checkpoint, error)
	UpsertCheckpoints(checkpoints []models.Checkpoint) (int, error)

	// MatchAction resolves a posted action name to its catalog entry. The
	// match is by prefix: the catalog name must start with the posted name,
	// tolerating suffixes added by later renames. An exact match always
	// wins; among prefix matches the shortest catalog name wins, ties broken
	// lexicographically.
	MatchAction(actionType, actionName string) (name string, points int, err error)

	// Notifications
	Notifications() ([]models.Notification, error)
	CreateNotification(notification *models.Notification) error
	DeleteNotification(id uint) error

	ApplyDiff(diff *CatalogDiff, table string) error
}

type catalogRepo struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepo{db: db}
}

func (r *catalogRepo) CreateChallenge(challenge *models.Challenge) error {
	if challenge == nil {
		return errors.New("challenge cannot be nil")
	}

	var existing models.Challenge
	if err := r.db.Where("name = ?", challenge.Name).First(&existing).Error; err == nil {
		return fmt.Errorf("challenge with name '%s' already exists", challenge.Name)
	}
	return r.db.Create(challenge).Error
}

func (r *catalogRepo) UpdateChallenge(challenge *models.Challenge) error {
	if challenge == nil {
		return errors.New("challenge cannot be nil")
	}

	result := r.db.Model(&models.Challenge{}).Where("name = ?", challenge.Name).Updates(map[string]interface{}{
		"description": challenge.Description,
		"category":    challenge.Category,
		"points":      challenge.Points,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update challenge: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("challenge not found with name: %s", challenge.Name)
	}
	return nil
}

func (r *catalogRepo) DeleteChallenge(name string) error {
	result := r.db.Where("name = ?", name).Delete(&models.Challenge{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete challenge: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("challenge not found with name: %s", name)
	}
	return nil
}

func (r *catalogRepo) Challenges() ([]models.Challenge, error) {
	var challenges []models.Challenge
	if err := r.db.Order("name ASC").Find(&challenges).Error; err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	return challenges, nil
}

func (r *catalogRepo) UpsertChallenges(challenges []models.Challenge) (int, error) {
	inserted := 0
	for i := range challenges {
		result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&challenges[i])
		if result.Error != nil {
			return inserted, fmt.Errorf("failed to import challenge '%s': %w", challenges[i].Name, result.Error)
		}
		inserted += int(result.RowsAffected)
	}
	return inserted, nil
}

func (r *catalogRepo) CreateCheckpoint(checkpoint *models.Checkpoint) error {
	if checkpoint == nil {
		return errors.New("checkpoint cannot be nil")
	}

	var existing models.Checkpoint
	if err := r.db.Where("name = ?", checkpoint.Name).First(&existing).Error; err == nil {
		return fmt.Errorf("checkpoint with name '%s' already exists", checkpoint.Name)
	}
	return r.db.Create(checkpoint).Error
}

func (r *catalogRepo) UpdateCheckpoint(checkpoint *models.Checkpoint) error {
	if checkpoint == nil {
		return errors.New("checkpoint cannot be nil")
	}

	result := r.db.Model(&models.Checkpoint{}).Where("name = ?", checkpoint.Name).Updates(map[string]interface{}{
		"description":      checkpoint.Description,
		"points":           checkpoint.Points,
		"latitude":         checkpoint.Latitude,
		"longitude":        checkpoint.Longitude,
		"challenge":        checkpoint.Challenge,
		"challenge_points": checkpoint.ChallengePoints,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update checkpoint: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("checkpoint not found with name: %s", checkpoint.Name)
	}
	return nil
}

func (r *catalogRepo) DeleteCheckpoint(name string) error {
	result := r.db.Where("name = ?", name).Delete(&models.Checkpoint{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("checkpoint not found with name: %s", name)
	}
	return nil
}

func (r *catalogRepo) Checkpoints() ([]models.Checkpoint, error) {
	var checkpoints []models.Checkpoint
	if err := r.db.Order("name ASC").Find(&checkpoints).Error; err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return checkpoints, nil
}

func (r *catalogRepo) UpsertCheckpoints(checkpoints []models.Checkpoint) (int, error) {
	inserted := 0
	for i := range checkpoints {
		result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&checkpoints[i])
		if result.Error != nil {
			return inserted, fmt.Errorf("failed to import checkpoint '%s': %w", checkpoints[i].Name, result.Error)
		}
		inserted += int(result.RowsAffected)
	}
	return inserted, nil
}

func (r *catalogRepo) MatchAction(actionType, actionName string) (string, int, error) {
	if actionName == "" {
		return "", 0, fmt.Errorf("%w: empty action name", ErrActionNotFound)
	}

	pattern := likeEscape(actionName) + "%"

	type candidate struct {
		Name   string
		Points int
	}
	var candidates []candidate

	var err error
	switch actionType {
	case models.ActionChallenge:
		err = r.db.Model(&models.Challenge{}).
			Where("name LIKE ? ESCAPE '\\'", pattern).
			Select("name", "points").
			Scan(&candidates).Error
	case models.ActionCheckpoint:
		err = r.db.Model(&models.Checkpoint{}).
			Where("name LIKE ? ESCAPE '\\'", pattern).
			Select("name", "points").
			Scan(&candidates).Error
	default:
		return "", 0, fmt.Errorf("%w: unknown action type %s", ErrActionNotFound, actionType)
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to match action: %w", err)
	}
	if len(candidates) == 0 {
		return "", 0, fmt.Errorf("%w: %s", ErrActionNotFound, actionName)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].Name) != len(candidates[j].Name) {
			return len(candidates[i].Name) < len(candidates[j].Name)
		}
		return candidates[i].Name < candidates[j].Name
	})
	for _, c := range candidates {
		if c.Name == actionName {
			return c.Name, c.Points, nil
		}
	}
	return candidates[0].Name, candidates[0].Points, nil
}

func (r *catalogRepo) Notifications() ([]models.Notification, error) {
	var notifications []models.Notification
	if err := r.db.Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *catalogRepo) CreateNotification(notification *models.Notification) error {
	if notification == nil {
		return errors.New("notification cannot be nil")
	}
	return r.db.Create(notification).Error
}

func (r *catalogRepo) DeleteNotification(id uint) error {
	result := r.db.Delete(&models.Notification{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification not found with ID: %d", id)
	}
	return nil
}

func (r *catalogRepo) ApplyDiff(diff *CatalogDiff, table string) error {
	if diff == nil {
		return errors.New("diff cannot be nil")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		switch table {
		case "challenges":
			for i := range diff.AddedChallenges {
				if err := tx.Create(&diff.AddedChallenges[i]).Error; err != nil {
					return fmt.Errorf("failed to add challenge '%s': %w", diff.AddedChallenges[i].Name, err)
				}
			}
			for i := range diff.ModifiedChallenges {
				c := diff.ModifiedChallenges[i]
				if err := tx.Model(&models.Challenge{}).Where("name = ?", c.Name).Updates(map[string]interface{}{
					"description": c.Description,
					"category":    c.Category,
					"points":      c.Points,
				}).Error; err != nil {
					return fmt.Errorf("failed to modify challenge '%s': %w", c.Name, err)
				}
			}
			if len(diff.Removed) > 0 {
				if err := tx.Where("name IN ?", diff.Removed).Delete(&models.Challenge{}).Error; err != nil {
					return fmt.Errorf("failed to remove challenges: %w", err)
				}
			}
		case "checkpoints":
			for i := range diff.AddedCheckpoints {
				if err := tx.Create(&diff.AddedCheckpoints[i]).Error; err != nil {
					return fmt.Errorf("failed to add checkpoint '%s': %w", diff.AddedCheckpoints[i].Name, err)
				}
			}
			for i := range diff.ModifiedCheckpoints {
				cp := diff.ModifiedCheckpoints[i]
				if err := tx.Model(&models.Checkpoint{}).Where("name = ?", cp.Name).Updates(map[string]interface{}{
					"description":      cp.Description,
					"points":           cp.Points,
					"latitude":         cp.Latitude,
					"longitude":        cp.Longitude,
					"challenge":        cp.Challenge,
					"challenge_points": cp.ChallengePoints,
				}).Error; err != nil {
					return fmt.Errorf("failed to modify checkpoint '%s': %w", cp.Name, err)
				}
			}
			if len(diff.Removed) > 0 {
				if err := tx.Where("name IN ?", diff.Removed).Delete(&models.Checkpoint{}).Error; err != nil {
					return fmt.Errorf("failed to remove checkpoints: %w", err)
				}
			}
		default:
			return fmt.Errorf("unknown catalog table: %s", table)
		}
		return nil
	})
}

func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
