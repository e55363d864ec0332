package services

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"

	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/settings"
	"github.com/kasnerz/letax/internal/storage"
	"github.com/kasnerz/letax/internal/utils"
)

// ActionInfo describes one selectable challenge or checkpoint. Checkpoints
// may carry an extra challenge solvable on site, announced with its own
// bonus points.
type ActionInfo struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Category        string `json:"category,omitempty"`
	Points          int    `json:"points"`
	Challenge       string `json:"challenge,omitempty"`
	ChallengePoints int    `json:"challenge_points,omitempty"`
	Completed       bool   `json:"completed"`
}

type SubmitPostRequest struct {
	ActionType string `json:"action_type" validate:"required,oneof=challenge checkpoint story"`
	ActionName string `json:"action_name" validate:"required"`
	Comment    string `json:"comment"`
}

type PostService struct {
	repos    *repositories.Manager
	settings *settings.Store
	store    storage.Storage
	proc     *media.Processor
	scoring  *ScoringService
}

func NewPostService(repos *repositories.Manager, st *settings.Store, store storage.Storage, proc *media.Processor, scoring *ScoringService) *PostService {
	return &PostService{repos: repos, settings: st, store: store, proc: proc, scoring: scoring}
}

// Submit validates and stores a new post with its media files. Posting is
// only open while the event is ongoing. A team may complete each challenge
// and checkpoint once; stories are unlimited. A duplicate submission leaves
// the original intact.
func (s *PostService) Submit(ctx context.Context, eventID, paxID string, req SubmitPostRequest, uploads []media.Upload) (*models.Post, error) {
	event, err := s.settings.EventByID(eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != models.EventOngoing {
		return nil, fmt.Errorf("posting is closed, the event is not ongoing")
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	team, err := repo.TeamRepo.ForParticipant(paxID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fmt.Errorf("you have to be in a team to post")
	}

	if len(uploads) == 0 {
		return nil, fmt.Errorf("at least one photo or video is required")
	}
	for i := range uploads {
		if err := utils.ValidateMediaFile(uploads[i].ContentType); err != nil {
			return nil, err
		}
	}

	switch req.ActionType {
	case models.ActionChallenge, models.ActionCheckpoint:
		if _, _, err := repo.CatalogRepo.MatchAction(req.ActionType, req.ActionName); err != nil {
			return nil, fmt.Errorf("unknown %s %q", req.ActionType, req.ActionName)
		}
		exists, err := repo.PostRepo.Exists(team.TeamID, req.ActionType, req.ActionName)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("your team already completed %q", req.ActionName)
		}
	case models.ActionStory:
		// stories are never deduplicated
	default:
		return nil, fmt.Errorf("invalid action type %q", req.ActionType)
	}

	dir := path.Join("files", eventID, req.ActionType, slug.Make(req.ActionName), slug.Make(team.Name))
	files, err := s.storeUploads(ctx, dir, uploads)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		PostID:     utils.GenerateID(),
		PaxID:      paxID,
		TeamID:     team.TeamID,
		ActionType: req.ActionType,
		ActionName: req.ActionName,
		Comment:    req.Comment,
		Created:    time.Now(),
		Files:      files,
	}
	if err := repo.PostRepo.Create(post); err != nil {
		return nil, err
	}

	s.scoring.Invalidate(eventID)
	logrus.WithFields(logrus.Fields{
		"post_id":     post.PostID,
		"team_id":     team.TeamID,
		"action_type": req.ActionType,
		"action_name": req.ActionName,
	}).Info("post created")
	return post, nil
}

// Feed returns posts newest first, optionally filtered, paginated with the
// configured page size.
func (s *PostService) Feed(eventID string, filters repositories.PostFilters, page int) ([]models.Post, int64, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	size := s.settings.FeedPageSize()
	return repo.PostRepo.List(&filters, (page-1)*size, size)
}

func (s *PostService) ByID(eventID, postID string) (*models.Post, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.PostRepo.ByID(postID)
}

// UpdateComment edits the text of an existing post. Only the author or an
// admin may edit.
func (s *PostService) UpdateComment(eventID, postID, callerPax string, isAdmin bool, comment string) error {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}

	post, err := repo.PostRepo.ByID(postID)
	if err != nil {
		return err
	}
	if post.PaxID != callerPax && !isAdmin {
		return fmt.Errorf("only the author can edit this post")
	}
	return repo.PostRepo.UpdateComment(postID, comment)
}

// Delete removes a post, its database rows and its stored files. Only the
// author or an admin may delete. Deleting a challenge or checkpoint post
// reopens the action for the team.
func (s *PostService) Delete(ctx context.Context, eventID, postID, callerPax string, isAdmin bool) error {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}

	post, err := repo.PostRepo.ByID(postID)
	if err != nil {
		return err
	}
	if post.PaxID != callerPax && !isAdmin {
		return fmt.Errorf("only the author can delete this post")
	}

	if err := repo.PostRepo.Delete(postID); err != nil {
		return err
	}

	for _, f := range post.Files {
		if err := s.store.Delete(ctx, f.Path); err != nil {
			logrus.WithError(err).WithField("path", f.Path).Warn("failed to delete post file")
		}
		for _, suffix := range media.ThumbnailSuffixes() {
			if err := s.store.Delete(ctx, media.ThumbnailPath(f.Path, suffix)); err != nil {
				logrus.WithError(err).WithField("path", f.Path).Debug("failed to delete thumbnail")
			}
		}
	}

	s.scoring.Invalidate(eventID)
	logrus.WithFields(logrus.Fields{"post_id": postID, "pax_id": callerPax}).Info("post deleted")
	return nil
}

// AvailableActions lists the catalog of the given type with the team's
// already completed actions flagged.
func (s *PostService) AvailableActions(eventID, paxID, actionType string) ([]ActionInfo, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	completed := map[string]bool{}
	team, err := repo.TeamRepo.ForParticipant(paxID)
	if err != nil {
		return nil, err
	}
	if team != nil {
		names, err := repo.PostRepo.CompletedActionNames(team.TeamID, actionType)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			completed[name] = true
		}
	}

	var actions []ActionInfo
	switch actionType {
	case models.ActionChallenge:
		challenges, err := repo.CatalogRepo.Challenges()
		if err != nil {
			return nil, err
		}
		for _, c := range challenges {
			actions = append(actions, ActionInfo{
				Name:        c.Name,
				Description: c.Description,
				Category:    c.Category,
				Points:      c.Points,
				Completed:   completed[c.Name],
			})
		}
	case models.ActionCheckpoint:
		checkpoints, err := repo.CatalogRepo.Checkpoints()
		if err != nil {
			return nil, err
		}
		for _, c := range checkpoints {
			actions = append(actions, ActionInfo{
				Name:            c.Name,
				Description:     c.Description,
				Points:          c.Points,
				Challenge:       c.Challenge,
				ChallengePoints: c.ChallengePoints,
				Completed:       completed[c.Name],
			})
		}
	default:
		return nil, fmt.Errorf("invalid action type %q", actionType)
	}
	return actions, nil
}

// storeUploads runs each upload through the media pipeline and writes the
// originals plus thumbnails to storage.
func (s *PostService) storeUploads(ctx context.Context, dir string, uploads []media.Upload) ([]models.PostFile, error) {
	files := make([]models.PostFile, 0, len(uploads))
	for i := range uploads {
		u := uploads[i]

		var (
			name string
			data []byte
			mime string
			err  error
		)
		switch {
		case u.IsImage():
			data, name, err = s.proc.ProcessPhoto(u)
			mime = "image/jpeg"
		case u.IsVideo():
			data, name, err = s.proc.ProcessVideo(ctx, u)
			mime = "video/mp4"
		default:
			err = fmt.Errorf("unsupported content type %q", u.ContentType)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to process %s: %w", u.Filename, err)
		}

		filePath := path.Join(dir, name)
		if err := s.store.Write(ctx, filePath, data); err != nil {
			return nil, err
		}

		if u.IsImage() {
			thumbs, err := s.proc.Thumbnails(data)
			if err != nil {
				return nil, err
			}
			for suffix, thumb := range thumbs {
				if err := s.store.Write(ctx, media.ThumbnailPath(filePath, suffix), thumb); err != nil {
					return nil, err
				}
			}
		}

		files = append(files, models.PostFile{
			Path:     filePath,
			MIME:     mime,
			Position: i,
		})
	}
	return files, nil
}
