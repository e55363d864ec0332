package services

import (
	"github.com/sirupsen/logrus"

	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/settings"
)

type EventService struct {
	settings *settings.Store
	repos    *repositories.Manager
	scoring  *ScoringService
}

func NewEventService(st *settings.Store, repos *repositories.Manager, scoring *ScoringService) *EventService {
	return &EventService{settings: st, repos: repos, scoring: scoring}
}

// List returns the known events, newest year first. Draft events are only
// shown to admins.
func (s *EventService) List(includeDrafts bool) []settings.Event {
	events := s.settings.Events()
	if includeDrafts {
		return events
	}

	out := make([]settings.Event, 0, len(events))
	for _, e := range events {
		if e.Status != models.EventDraft {
			out = append(out, e)
		}
	}
	return out
}

// ByID looks up one event by id.
func (s *EventService) ByID(eventID string) (*settings.Event, error) {
	return s.settings.EventByID(eventID)
}

// Default resolves the event a request without an explicit event id targets.
func (s *EventService) Default() (*settings.Event, error) {
	return s.settings.DefaultEvent()
}

// Create registers a fresh draft year and provisions its database file.
func (s *EventService) Create(year int) (*settings.Event, error) {
	event, err := s.settings.CreateEvent(year)
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.ForEvent(event.ID); err != nil {
		return nil, err
	}
	return event, nil
}

// Update overwrites an event's metadata. Status transitions are free-form
// for admins; only a second active event is refused.
func (s *EventService) Update(event settings.Event) error {
	if err := s.settings.UpdateEvent(event); err != nil {
		return err
	}
	s.scoring.Invalidate(event.ID)
	logrus.WithFields(logrus.Fields{"event_id": event.ID, "status": event.Status}).Info("event updated")
	return nil
}
