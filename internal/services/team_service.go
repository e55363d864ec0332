package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"

	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/settings"
	"github.com/kasnerz/letax/internal/storage"
	"github.com/kasnerz/letax/internal/utils"
)

const maxTeamSize = 3

type SaveTeamRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=100"`
	Motto       string   `json:"motto" validate:"max=200"`
	Web         string   `json:"web" validate:"omitempty,url"`
	Description string   `json:"description"`
	Members     []string `json:"members" validate:"required,min=1,max=3"`
}

type MarkerRequest struct {
	Color     string `json:"color"`
	IconColor string `json:"icon_color"`
	Icon      string `json:"icon"`
}

type TeamService struct {
	repos    *repositories.Manager
	settings *settings.Store
	store    storage.Storage
	proc     *media.Processor
	scoring  *ScoringService
}

func NewTeamService(repos *repositories.Manager, st *settings.Store, store storage.Storage, proc *media.Processor, scoring *ScoringService) *TeamService {
	return &TeamService{repos: repos, settings: st, store: store, proc: proc, scoring: scoring}
}

// Save creates the caller's team or updates it. Saving with an unchanged
// member set is a plain field update; new members must exist as participants
// and must not belong to another team. The team name stays unique per event.
func (s *TeamService) Save(eventID, callerPax string, isAdmin bool, req SaveTeamRequest) (*models.Team, error) {
	event, err := s.settings.EventByID(eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventPast && !isAdmin {
		return nil, fmt.Errorf("the event is over, teams can no longer be changed")
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	members, err := s.normalizeMembers(repo, req.Members)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("team name cannot be empty")
	}

	team, err := repo.TeamRepo.ForParticipant(callerPax)
	if err != nil {
		return nil, err
	}
	if team == nil && !isAdmin && !contains(members, callerPax) {
		return nil, fmt.Errorf("you have to be a member of your own team")
	}

	// anyone newly joining must not be in a different team already
	for _, paxID := range members {
		other, err := repo.TeamRepo.ForParticipant(paxID)
		if err != nil {
			return nil, err
		}
		if other != nil && (team == nil || other.TeamID != team.TeamID) {
			return nil, fmt.Errorf("participant %s is already in team %q", paxID, other.Name)
		}
	}

	if team == nil {
		team = &models.Team{
			TeamID:  utils.GenerateID(),
			Visible: true,
		}
		applyTeamFields(team, req, members)
		if err := repo.TeamRepo.Create(team); err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"team_id": team.TeamID, "name": team.Name}).Info("team created")
	} else {
		applyTeamFields(team, req, members)
		if err := repo.TeamRepo.Update(team); err != nil {
			return nil, err
		}
		logrus.WithField("team_id", team.TeamID).Info("team updated")
	}

	s.scoring.Invalidate(eventID)
	return team, nil
}

// SetPhoto stores a new team photo and updates the record.
func (s *TeamService) SetPhoto(ctx context.Context, eventID, teamID string, upload media.Upload) error {
	if err := utils.ValidateImageFile(upload.ContentType); err != nil {
		return err
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}
	team, err := repo.TeamRepo.ByID(teamID)
	if err != nil {
		return err
	}

	data, name, err := s.proc.ProcessPhoto(upload)
	if err != nil {
		return err
	}
	filePath := path.Join("files", eventID, "teams", slug.Make(team.Name), name)
	if err := s.store.Write(ctx, filePath, data); err != nil {
		return err
	}
	thumbs, err := s.proc.Thumbnails(data)
	if err != nil {
		return err
	}
	for suffix, thumb := range thumbs {
		if err := s.store.Write(ctx, media.ThumbnailPath(filePath, suffix), thumb); err != nil {
			return err
		}
	}

	team.Photo = filePath
	if err := repo.TeamRepo.Update(team); err != nil {
		return err
	}
	s.scoring.Invalidate(eventID)
	return nil
}

func (s *TeamService) ByID(eventID, teamID string) (*models.Team, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.TeamRepo.ByID(teamID)
}

func (s *TeamService) ForParticipant(eventID, paxID string) (*models.Team, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.TeamRepo.ForParticipant(paxID)
}

func (s *TeamService) List(eventID string) ([]models.Team, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.TeamRepo.List()
}

// SetAward assigns or clears an admin award label. Awards override the point
// ranking when top teams are presented.
func (s *TeamService) SetAward(eventID, teamID, award string) error {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}
	if err := repo.TeamRepo.SetAward(teamID, award); err != nil {
		return err
	}
	s.scoring.Invalidate(eventID)
	return nil
}

// SetMarker updates the team's map marker style.
func (s *TeamService) SetMarker(eventID, teamID, callerPax string, isAdmin bool, req MarkerRequest) error {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}
	team, err := repo.TeamRepo.ByID(teamID)
	if err != nil {
		return err
	}
	if !team.HasMember(callerPax) && !isAdmin {
		return fmt.Errorf("only team members can change the marker")
	}
	if err := repo.TeamRepo.SetMarker(teamID, req.Color, req.IconColor, req.Icon); err != nil {
		return err
	}
	s.scoring.Invalidate(eventID)
	return nil
}

// SetVisibility hides or shows the team's position on the shared map.
func (s *TeamService) SetVisibility(eventID, teamID, callerPax string, isAdmin bool, visible bool) error {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}
	team, err := repo.TeamRepo.ByID(teamID)
	if err != nil {
		return err
	}
	if !team.HasMember(callerPax) && !isAdmin {
		return fmt.Errorf("only team members can change visibility")
	}
	return repo.TeamRepo.SetVisibility(teamID, visible)
}

func (s *TeamService) normalizeMembers(repo *repositories.Repository, members []string) ([]string, error) {
	seen := make(map[string]bool, len(members))
	out := make([]string, 0, len(members))
	for _, paxID := range members {
		paxID = strings.TrimSpace(paxID)
		if paxID == "" || seen[paxID] {
			continue
		}
		seen[paxID] = true

		if _, err := repo.ParticipantRepo.ByID(paxID); err != nil {
			return nil, fmt.Errorf("unknown participant %q", paxID)
		}
		out = append(out, paxID)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("a team needs at least one member")
	}
	if len(out) > maxTeamSize {
		return nil, fmt.Errorf("a team can have at most %d members", maxTeamSize)
	}
	return out, nil
}

func applyTeamFields(team *models.Team, req SaveTeamRequest, members []string) {
	team.Name = strings.TrimSpace(req.Name)
	team.Motto = req.Motto
	team.Web = req.Web
	team.Description = req.Description

	team.Member1, team.Member2, team.Member3 = "", "", ""
	slots := []*string{&team.Member1, &team.Member2, &team.Member3}
	for i, paxID := range members {
		*slots[i] = paxID
	}
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
