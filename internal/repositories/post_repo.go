package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kasnerz/letax/internal/models"
)

// PostFilters narrows a feed listing. Empty fields are ignored.
type PostFilters struct {
	TeamID     string
	ActionType string
	ActionName string
}

type PostRepository interface {
	Create(post *models.Post) error
	ByID(postID string) (*models.Post, error)
	ByTeam(teamID string) ([]models.Post, error)
	List(filters *PostFilters, offset, limit int) ([]models.Post, int64, error)
	// Exists reports whether the team already posted the action. The
	// uniqueness rule covers challenges and checkpoints only; callers must
	// not consult it for stories.
	Exists(teamID, actionType, actionName string) (bool, error)
	// CompletedActionNames lists action names of the given type the team has
	// already posted.
	CompletedActionNames(teamID, actionType string) ([]string, error)
	UpdateComment(postID, comment string) error
	Delete(postID string) error
}

type postRepo struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepo{db: db}
}

func (r *postRepo) Create(post *models.Post) error {
	if post == nil {
		return errors.New("post cannot be nil")
	}
	return r.db.Create(post).Error
}

func (r *postRepo) ByID(postID string) (*models.Post, error) {
	if postID == "" {
		return nil, errors.New("post ID cannot be empty")
	}

	var post models.Post
	if err := r.db.
		Preload("Files", func(db *gorm.DB) *gorm.DB {
			return db.Order("post_files.position ASC")
		}).
		Where("post_id = ?", postID).
		First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("post not found with ID: %s", postID)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

func (r *postRepo) ByTeam(teamID string) ([]models.Post, error) {
	if teamID == "" {
		return nil, errors.New("team ID cannot be empty")
	}

	var posts []models.Post
	if err := r.db.
		Preload("Files").
		Where("team_id = ?", teamID).
		Order("created DESC").
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to get posts for team: %w", err)
	}
	return posts, nil
}

func (r *postRepo) List(filters *PostFilters, offset, limit int) ([]models.Post, int64, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := r.db.Model(&models.Post{})
	if filters != nil {
		if filters.TeamID != "" {
			query = query.Where("team_id = ?", filters.TeamID)
		}
		if filters.ActionType != "" {
			query = query.Where("action_type = ?", filters.ActionType)
		}
		if filters.ActionName != "" {
			query = query.Where("action_name = ?", filters.ActionName)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	var posts []models.Post
	if err := query.
		Preload("Files").
		Order("created DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}

	return posts, total, nil
}

func (r *postRepo) Exists(teamID, actionType, actionName string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Post{}).
		Where("team_id = ? AND action_type = ? AND action_name = ?", teamID, actionType, actionName).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check post existence: %w", err)
	}
	return count > 0, nil
}

func (r *postRepo) CompletedActionNames(teamID, actionType string) ([]string, error) {
	var names []string
	err := r.db.Model(&models.Post{}).
		Where("team_id = ? AND action_type = ?", teamID, actionType).
		Distinct().
		Pluck("action_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed actions: %w", err)
	}
	return names, nil
}

func (r *postRepo) UpdateComment(postID, comment string) error {
	if postID == "" {
		return errors.New("post ID cannot be empty")
	}

	result := r.db.Model(&models.Post{}).Where("post_id = ?", postID).Update("comment", comment)
	if result.Error != nil {
		return fmt.Errorf("failed to update post comment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("post not found with ID: %s", postID)
	}
	return nil
}

func (r *postRepo) Delete(postID string) error {
	if postID == "" {
		return errors.New("post ID cannot be empty")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostFile{}).Error; err != nil {
			return fmt.Errorf("failed to delete post files: %w", err)
		}

		result := tx.Where("post_id = ?", postID).Delete(&models.Post{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete post: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("post not found with ID: %s", postID)
		}
		return nil
	})
}
