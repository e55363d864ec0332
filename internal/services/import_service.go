package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/settings"
	"github.com/kasnerz/letax/internal/utils"
	"github.com/kasnerz/letax/internal/woocommerce"
)

const wcPageSize = 100

// ImportSummary reports the outcome of a participant import. Errors are
// per-record; a failed record never aborts the rest of the run.
type ImportSummary struct {
	Fetched  int      `json:"fetched"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

type ImportService struct {
	repos    *repositories.Manager
	settings *settings.Store
	wc       *woocommerce.Client
	scoring  *ScoringService
}

func NewImportService(repos *repositories.Manager, st *settings.Store, wc *woocommerce.Client, scoring *ScoringService) *ImportService {
	return &ImportService{repos: repos, settings: st, wc: wc, scoring: scoring}
}

// ImportParticipants pulls everyone who ordered the event's product from the
// shop and inserts them as participants. Re-running the import is safe:
// already known ids are left untouched, so locally edited profiles survive.
func (s *ImportService) ImportParticipants(ctx context.Context, eventID string) (*ImportSummary, error) {
	event, err := s.settings.EventByID(eventID)
	if err != nil {
		return nil, err
	}
	if event.ProductID == "" {
		return nil, fmt.Errorf("event %s has no shop product configured", eventID)
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{}
	seen := map[int64]bool{}

	for page := 1; ; page++ {
		orders, err := s.wc.Orders(ctx, event.ProductID, page, wcPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch orders page %d: %w", page, err)
		}
		if len(orders) == 0 {
			break
		}

		for _, order := range orders {
			if order.CustomerID == 0 || seen[order.CustomerID] {
				continue
			}
			seen[order.CustomerID] = true
			summary.Fetched++

			customer, err := s.wc.Customer(ctx, order.CustomerID)
			if err != nil {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("customer %d: %v", order.CustomerID, err))
				continue
			}

			inserted, err := repo.ParticipantRepo.Upsert(&models.Participant{
				ID:      strconv.FormatInt(customer.ID, 10),
				Email:   strings.ToLower(customer.Email),
				NameWeb: strings.TrimSpace(customer.FirstName + " " + customer.LastName),
			})
			if err != nil {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("customer %d: %v", customer.ID, err))
				continue
			}
			if inserted {
				summary.Imported++
			} else {
				summary.Skipped++
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"event_id": eventID,
		"fetched":  summary.Fetched,
		"imported": summary.Imported,
		"skipped":  summary.Skipped,
		"errors":   len(summary.Errors),
	}).Info("participant import finished")
	return summary, nil
}

// Participants lists the event's participants sorted by name.
func (s *ImportService) Participants(eventID string) ([]models.Participant, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.ParticipantRepo.List()
}

// AddParticipant registers one participant manually, outside the shop import.
func (s *ImportService) AddParticipant(eventID, email, name string) (*models.Participant, error) {
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	pax := &models.Participant{
		ID:      utils.GenerateID(),
		Email:   strings.ToLower(strings.TrimSpace(email)),
		NameWeb: strings.TrimSpace(name),
	}
	if pax.Email == "" || pax.NameWeb == "" {
		return nil, fmt.Errorf("email and name are required")
	}
	if err := repo.ParticipantRepo.Create(pax); err != nil {
		return nil, err
	}
	return pax, nil
}

// ImportChallengesCSV replaces nothing and edits nothing silently: it parses
// the sheet, upserts by name and reports the count. Columns: name,
// description, category, points.
func (s *ImportService) ImportChallengesCSV(eventID string, r io.Reader) (int, error) {
	records, header, err := readCSV(r, "name", "description", "category", "points")
	if err != nil {
		return 0, err
	}

	challenges := make([]models.Challenge, 0, len(records))
	for i, rec := range records {
		points, err := strconv.Atoi(strings.TrimSpace(rec[header["points"]]))
		if err != nil {
			return 0, fmt.Errorf("row %d: invalid points %q", i+2, rec[header["points"]])
		}
		name := strings.TrimSpace(rec[header["name"]])
		if name == "" {
			return 0, fmt.Errorf("row %d: empty challenge name", i+2)
		}
		challenges = append(challenges, models.Challenge{
			Name:        name,
			Description: strings.TrimSpace(rec[header["description"]]),
			Category:    strings.TrimSpace(rec[header["category"]]),
			Points:      points,
		})
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return 0, err
	}
	count, err := repo.CatalogRepo.UpsertChallenges(challenges)
	if err != nil {
		return 0, err
	}
	s.scoring.Invalidate(eventID)
	return count, nil
}

// ImportCheckpointsCSV upserts checkpoints by name. Columns: name,
// description, points, gps; optional: challenge, challenge_points. The gps
// column holds "lat, lon" in any common decoration.
func (s *ImportService) ImportCheckpointsCSV(eventID string, r io.Reader) (int, error) {
	records, header, err := readCSV(r, "name", "description", "points", "gps")
	if err != nil {
		return 0, err
	}

	checkpoints := make([]models.Checkpoint, 0, len(records))
	for i, rec := range records {
		points, err := strconv.Atoi(strings.TrimSpace(rec[header["points"]]))
		if err != nil {
			return 0, fmt.Errorf("row %d: invalid points %q", i+2, rec[header["points"]])
		}
		lat, lon, err := parseGPS(rec[header["gps"]])
		if err != nil {
			return 0, fmt.Errorf("row %d: %v", i+2, err)
		}

		cp := models.Checkpoint{
			Name:        strings.TrimSpace(rec[header["name"]]),
			Description: strings.TrimSpace(rec[header["description"]]),
			Points:      points,
			Latitude:    lat,
			Longitude:   lon,
		}
		if cp.Name == "" {
			return 0, fmt.Errorf("row %d: empty checkpoint name", i+2)
		}
		if idx, ok := header["challenge"]; ok {
			cp.Challenge = strings.TrimSpace(rec[idx])
		}
		if idx, ok := header["challenge_points"]; ok && strings.TrimSpace(rec[idx]) != "" {
			cp.ChallengePoints, err = strconv.Atoi(strings.TrimSpace(rec[idx]))
			if err != nil {
				return 0, fmt.Errorf("row %d: invalid challenge points %q", i+2, rec[idx])
			}
		}
		checkpoints = append(checkpoints, cp)
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return 0, err
	}
	count, err := repo.CatalogRepo.UpsertCheckpoints(checkpoints)
	if err != nil {
		return 0, err
	}
	s.scoring.Invalidate(eventID)
	return count, nil
}

// readCSV parses a headed CSV and checks that the required columns exist.
// The header index maps lower-cased column names to positions.
func readCSV(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("empty CSV")
	}

	header := map[string]int{}
	for i, col := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := header[col]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return rows[1:], header, nil
}

// parseGPS extracts "lat, lon" from a possibly decorated coordinate string,
// e.g. "49.1234N, 16.5678E".
func parseGPS(raw string) (lat, lon float64, err error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == ',':
			return r
		default:
			return -1
		}
	}, raw)

	parts := strings.Split(clean, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid gps value %q", raw)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("invalid gps value %q", raw)
	}
	return lat, lon, nil
}
