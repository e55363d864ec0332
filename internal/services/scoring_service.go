package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/kasnerz/letax/internal/cache"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
)

// TeamOverview is one leaderboard row: the team, its derived point total and
// the post count breakdown. Points are recomputed from the catalog on every
// aggregation; nothing is frozen at post time, so catalog edits retroactively
// change historical scores.
type TeamOverview struct {
	TeamID      string   `json:"team_id"`
	Name        string   `json:"name"`
	Members     []string `json:"members"`
	MemberNames []string `json:"member_names"`
	Points      int      `json:"points"`
	Challenges  int      `json:"challenges"`
	Checkpoints int      `json:"checkpoints"`
	Stories     int      `json:"stories"`
	Award       string   `json:"award,omitempty"`
	IsTopX      bool     `json:"is_top_x"`
	Photo       string   `json:"photo,omitempty"`
	Motto       string   `json:"motto,omitempty"`
	Web         string   `json:"web,omitempty"`
}

type ScoringService struct {
	repos *repositories.Manager
	cache *cache.TTL
}

func NewScoringService(repos *repositories.Manager, c *cache.TTL) *ScoringService {
	return &ScoringService{repos: repos, cache: c}
}

// PointsForPost resolves the point value of a single post at read time.
// Stories and unmatched actions score zero; a miss is logged, never fatal.
func (s *ScoringService) PointsForPost(repo *repositories.Repository, post *models.Post) int {
	if post.ActionType == models.ActionStory {
		return 0
	}

	_, points, err := repo.CatalogRepo.MatchAction(post.ActionType, post.ActionName)
	if err != nil {
		if errors.Is(err, repositories.ErrActionNotFound) {
			logrus.WithFields(logrus.Fields{
				"action_type": post.ActionType,
				"action_name": post.ActionName,
			}).Warn("action not found in catalog, scoring as zero")
			return 0
		}
		logrus.WithError(err).Error("action lookup failed, scoring as zero")
		return 0
	}
	return points
}

// Leaderboard computes every team's overview, ranked by points descending.
// The sort is stable and ties are not broken. Teams without posts rank with
// zero points. Results are cached per event until a write invalidates them.
func (s *ScoringService) Leaderboard(eventID string) ([]TeamOverview, error) {
	key := cache.Key(eventID, "leaderboard")
	if v, ok := s.cache.Get(key); ok {
		return v.([]TeamOverview), nil
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	teams, err := repo.TeamRepo.List()
	if err != nil {
		return nil, err
	}

	overviews := make([]TeamOverview, 0, len(teams))
	for i := range teams {
		overview, err := s.buildOverview(repo, &teams[i])
		if err != nil {
			// one broken team must not take the whole board down
			logrus.WithError(err).WithField("team_id", teams[i].TeamID).Warn("skipping team in leaderboard")
			continue
		}
		overviews = append(overviews, *overview)
	}

	sort.SliceStable(overviews, func(i, j int) bool {
		return overviews[i].Points > overviews[j].Points
	})

	s.cache.Set(key, overviews)
	return overviews, nil
}

// TeamOverview computes a single team's row.
func (s *ScoringService) TeamOverview(eventID, teamID string) (*TeamOverview, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	team, err := repo.TeamRepo.ByID(teamID)
	if err != nil {
		return nil, err
	}
	return s.buildOverview(repo, team)
}

// TopTeams returns the teams to highlight: every team holding an award
// label, or, when no awards were assigned, the first n of the leaderboard.
func (s *ScoringService) TopTeams(eventID string, n int) ([]TeamOverview, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	awarded, err := repo.TeamRepo.WithAwards()
	if err != nil {
		return nil, err
	}

	if len(awarded) > 0 {
		overviews := make([]TeamOverview, 0, len(awarded))
		for i := range awarded {
			overview, err := s.buildOverview(repo, &awarded[i])
			if err != nil {
				logrus.WithError(err).WithField("team_id", awarded[i].TeamID).Warn("skipping awarded team")
				continue
			}
			overviews = append(overviews, *overview)
		}
		return overviews, nil
	}

	board, err := s.Leaderboard(eventID)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if n > len(board) {
		n = len(board)
	}
	return board[:n], nil
}

// Invalidate drops the cached leaderboard after any post, team or catalog
// write for the event.
func (s *ScoringService) Invalidate(eventID string) {
	s.cache.InvalidateEvent(eventID)
}

func (s *ScoringService) buildOverview(repo *repositories.Repository, team *models.Team) (*TeamOverview, error) {
	if team == nil {
		return nil, fmt.Errorf("team cannot be nil")
	}

	posts, err := repo.PostRepo.ByTeam(team.TeamID)
	if err != nil {
		return nil, err
	}

	overview := &TeamOverview{
		TeamID:  team.TeamID,
		Name:    team.Name,
		Members: team.Members(),
		Award:   team.Award,
		IsTopX:  team.IsTopX,
		Photo:   team.Photo,
		Motto:   team.Motto,
		Web:     team.Web,
	}

	for _, paxID := range overview.Members {
		pax, err := repo.ParticipantRepo.ByID(paxID)
		if err != nil {
			logrus.WithField("pax_id", paxID).Warn("team member not found among participants")
			overview.MemberNames = append(overview.MemberNames, "")
			continue
		}
		overview.MemberNames = append(overview.MemberNames, pax.NameWeb)
	}

	for i := range posts {
		overview.Points += s.PointsForPost(repo, &posts[i])

		switch posts[i].ActionType {
		case models.ActionChallenge:
			overview.Challenges++
		case models.ActionCheckpoint:
			overview.Checkpoints++
		case models.ActionStory:
			overview.Stories++
		}
	}

	return overview, nil
}
