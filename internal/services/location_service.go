package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kasnerz/letax/internal/geocode"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/settings"
)

// LiveFix is a device-reported GPS reading.
type LiveFix struct {
	// "required" would reject the legitimate zero value, so the coordinates
	// carry range checks only.
	Latitude         float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude        float64 `json:"longitude" validate:"min=-180,max=180"`
	Accuracy         string  `json:"accuracy"`
	Altitude         string  `json:"altitude"`
	AltitudeAccuracy string  `json:"altitude_accuracy"`
	Heading          string  `json:"heading"`
	Speed            string  `json:"speed"`
}

// ManualFix is a user-entered position, either a textual place name or raw
// coordinates, stamped with a past time.
type ManualFix struct {
	Place   string    `json:"place" validate:"required"`
	Comment string    `json:"comment"`
	Date    time.Time `json:"date" validate:"required"`
}

// TeamLocation is a location enriched with the owning team's presentation.
type TeamLocation struct {
	models.Location
	TeamName  string `json:"team_name"`
	Color     string `json:"color"`
	IconColor string `json:"icon_color"`
	Icon      string `json:"icon"`
}

type LocationService struct {
	repos    *repositories.Manager
	settings *settings.Store
	geo      *geocode.Client
}

func NewLocationService(repos *repositories.Manager, st *settings.Store, geo *geocode.Client) *LocationService {
	return &LocationService{repos: repos, settings: st, geo: geo}
}

// ShareLive appends a device-reported fix for the caller's team. Sharing is
// only open while the event is ongoing. The address is resolved best-effort;
// a geocoder outage never blocks the share.
func (s *LocationService) ShareLive(ctx context.Context, eventID, username, paxID string, fix LiveFix) (*models.Location, error) {
	if err := s.requireOngoing(eventID); err != nil {
		return nil, err
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
		return nil, fmt.Errorf("you have to be in a team to share your location")
	}

	loc := &models.Location{
		Username:         username,
		TeamID:           team.TeamID,
		Latitude:         fix.Latitude,
		Longitude:        fix.Longitude,
		Accuracy:         fix.Accuracy,
		Altitude:         fix.Altitude,
		AltitudeAccuracy: fix.AltitudeAccuracy,
		Heading:          fix.Heading,
		Speed:            fix.Speed,
		Address:          s.reverseAddress(ctx, fix.Latitude, fix.Longitude),
		Date:             time.Now(),
	}
	if err := repo.LocationRepo.Append(loc); err != nil {
		return nil, err
	}
	return loc, nil
}

// AddManual appends a user-entered position. The place field accepts raw
// "lat, lon" coordinates or a place name resolved via the geocoder. The
// timestamp must not lie in the future.
func (s *LocationService) AddManual(ctx context.Context, eventID, username, paxID string, fix ManualFix) (*models.Location, error) {
	if fix.Date.After(time.Now()) {
		return nil, fmt.Errorf("the location date cannot be in the future")
	}
	if err := s.requireOngoing(eventID); err != nil {
		return nil, err
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
		return nil, fmt.Errorf("you have to be in a team to share your location")
	}

	lat, lon, address, err := s.resolvePlace(ctx, fix.Place)
	if err != nil {
		return nil, err
	}

	loc := &models.Location{
		Username:  username,
		TeamID:    team.TeamID,
		Comment:   fix.Comment,
		Latitude:  lat,
		Longitude: lon,
		Address:   address,
		Date:      fix.Date,
	}
	if err := repo.LocationRepo.Append(loc); err != nil {
		return nil, err
	}
	return loc, nil
}

// Last returns the team's newest location at or before the given time, or
// nil when the team never shared one.
func (s *LocationService) Last(eventID, teamID string, at time.Time) (*models.Location, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.LocationRepo.LastBefore(teamID, at)
}

// LastAll returns the newest location per visible team at or before the
// given time. Hidden teams are included only when includeHidden is set
// (the admin map).
func (s *LocationService) LastAll(eventID string, at time.Time, includeHidden bool) ([]TeamLocation, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	teams, err := repo.TeamRepo.List()
	if err != nil {
		return nil, err
	}

	var out []TeamLocation
	for i := range teams {
		team := &teams[i]
		if !team.Visible && !includeHidden {
			continue
		}
		loc, err := repo.LocationRepo.LastBefore(team.TeamID, at)
		if err != nil {
			return nil, err
		}
		if loc == nil {
			continue
		}
		out = append(out, TeamLocation{
			Location:  *loc,
			TeamName:  team.Name,
			Color:     team.Color,
			IconColor: team.IconColor,
			Icon:      team.Icon,
		})
	}
	return out, nil
}

// History returns the team's full track, oldest first.
func (s *LocationService) History(eventID, teamID string) ([]models.Location, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.LocationRepo.ByTeam(teamID)
}

// Delete removes one location entry. Only members of the owning team or an
// admin may delete.
func (s *LocationService) Delete(eventID string, id uint, callerPax string, isAdmin bool) error {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return err
	}

	if !isAdmin {
		team, err := repo.TeamRepo.ForParticipant(callerPax)
		if err != nil {
			return err
		}
		if team == nil {
			return fmt.Errorf("only team members can delete locations")
		}
		history, err := repo.LocationRepo.ByTeam(team.TeamID)
		if err != nil {
			return err
		}
		owned := false
		for i := range history {
			if history[i].ID == id {
				owned = true
				break
			}
		}
		if !owned {
			return fmt.Errorf("location does not belong to your team")
		}
	}

	return repo.LocationRepo.Delete(id)
}

// GPX renders a team's track as a GPX 1.1 document, one waypoint and one
// route point per fix in chronological order.
func (s *LocationService) GPX(eventID, teamID string) ([]byte, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	team, err := repo.TeamRepo.ByID(teamID)
	if err != nil {
		return nil, err
	}
	history, err := repo.LocationRepo.ByTeam(teamID)
	if err != nil {
		return nil, err
	}

	doc := gpxDoc{
		Version: "1.1",
		Creator: "letax",
		Route:   gpxRoute{Name: team.Name},
	}
	for i := range history {
		pt := gpxPoint{
			Latitude:  history[i].Latitude,
			Longitude: history[i].Longitude,
			Time:      history[i].Date.UTC().Format(time.RFC3339),
			Name:      history[i].Address,
		}
		doc.Waypoints = append(doc.Waypoints, pt)
		doc.Route.Points = append(doc.Route.Points, pt)
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func (s *LocationService) requireOngoing(eventID string) error {
	event, err := s.settings.EventByID(eventID)
	if err != nil {
		return err
	}
	if event.Status != models.EventOngoing {
		return fmt.Errorf("location sharing is closed, the event is not ongoing")
	}
	return nil
}

func (s *LocationService) reverseAddress(ctx context.Context, lat, lon float64) string {
	address, err := s.geo.Reverse(ctx, lat, lon)
	if err != nil {
		logrus.WithError(err).Debug("reverse geocoding failed")
		return ""
	}
	return address
}

// resolvePlace accepts "49.2, 16.6" style raw coordinates or a free-text
// place name for the geocoder.
func (s *LocationService) resolvePlace(ctx context.Context, place string) (lat, lon float64, address string, err error) {
	parts := strings.Split(place, ",")
	if len(parts) == 2 {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLat == nil && errLon == nil {
			return lat, lon, s.reverseAddress(ctx, lat, lon), nil
		}
	}

	result, err := s.geo.Forward(ctx, place)
	if err != nil {
		return 0, 0, "", fmt.Errorf("cannot find place %q: %w", place, err)
	}
	return result.Latitude, result.Longitude, result.DisplayName, nil
}

type gpxDoc struct {
	XMLName   xml.Name   `xml:"gpx"`
	Version   string     `xml:"version,attr"`
	Creator   string     `xml:"creator,attr"`
	Waypoints []gpxPoint `xml:"wpt"`
	Route     gpxRoute   `xml:"rte"`
}

type gpxRoute struct {
	Name   string     `xml:"name"`
	Points []gpxPoint `xml:"rtept"`
}

type gpxPoint struct {
	Latitude  float64 `xml:"lat,attr"`
	Longitude float64 `xml:"lon,attr"`
	Time      string  `xml:"time,omitempty"`
	Name      string  `xml:"name,omitempty"`
}
