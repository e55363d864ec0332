package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"

	"github.com/kasnerz/letax/internal/accounts"
	"github.com/kasnerz/letax/internal/mailer"
	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/settings"
	"github.com/kasnerz/letax/internal/storage"
	"github.com/kasnerz/letax/internal/utils"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Bio              string `json:"bio" validate:"max=2000"`
	EmergencyContact string `json:"emergency_contact" validate:"max=200"`
}

// Profile is the caller's combined view: the login account, the participant
// record of the event and the team membership, when they exist.
type Profile struct {
	Account     accounts.Account    `json:"account"`
	Participant *models.Participant `json:"participant,omitempty"`
	Team        *models.Team        `json:"team,omitempty"`
}

type AuthService struct {
	accounts  *accounts.Manager
	repos     *repositories.Manager
	settings  *settings.Store
	mail      *mailer.Mailer
	store     storage.Storage
	proc      *media.Processor
	jwtSecret string
}

func NewAuthService(acc *accounts.Manager, repos *repositories.Manager, st *settings.Store, mail *mailer.Mailer, store storage.Storage, proc *media.Processor, jwtSecret string) *AuthService {
	return &AuthService{
		accounts:  acc,
		repos:     repos,
		settings:  st,
		mail:      mail,
		store:     store,
		proc:      proc,
		jwtSecret: jwtSecret,
	}
}

// Register creates a login account. Registration is only open to e-mails of
// imported participants of the default event, or to preauthorized e-mails
// (crew, admins), which also determine the role.
func (s *AuthService) Register(req RegisterRequest) (*accounts.Account, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))

	role := models.RoleUser
	if preRole, ok := s.accounts.PreauthorizedEmails()[email]; ok {
		role = preRole
	} else {
		eligible, err := s.isParticipantEmail(email)
		if err != nil {
			return nil, err
		}
		if !eligible {
			return nil, fmt.Errorf("e-mail %s is not registered for the event", email)
		}
	}

	return s.accounts.Add(req.Username, email, req.Name, req.Password, role)
}

// Login verifies the credentials and issues a signed JWT.
func (s *AuthService) Login(req LoginRequest) (string, *accounts.Account, error) {
	acc, err := s.accounts.Authenticate(req.Login, req.Password)
	if err != nil {
		return "", nil, err
	}

	claims := jwt.MapClaims{
		"username": acc.Username,
		"email":    acc.Email,
		"role":     acc.Role,
		"exp":      time.Now().Add(30 * 24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	logrus.WithField("username", acc.Username).Info("user logged in")
	return signed, acc, nil
}

// ResetPassword generates a fresh password and mails it to the account's
// address. The response never reveals whether the address exists.
func (s *AuthService) ResetPassword(email string) error {
	acc, err := s.accounts.ByEmail(email)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			logrus.WithField("email", email).Info("password reset for unknown e-mail ignored")
			return nil
		}
		return err
	}

	password := utils.RandomPassword()
	if err := s.accounts.SetPassword(acc.Username, password); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>your new password is: <b>%s</b></p><p>Please change it after logging in.</p>",
		acc.Name, password,
	)
	if err := s.mail.Send(acc.Email, "Password reset", body); err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}
	return nil
}

// ChangePassword sets a new password after verifying the current one.
func (s *AuthService) ChangePassword(username, current, newPassword string) error {
	if _, err := s.accounts.Authenticate(username, current); err != nil {
		return err
	}
	return s.accounts.SetPassword(username, newPassword)
}

// Profile assembles the account, participant and team view for an event.
func (s *AuthService) Profile(eventID, username string) (*Profile, error) {
	acc, err := s.accounts.ByUsername(username)
	if err != nil {
		return nil, err
	}

	profile := &Profile{Account: *acc}
	profile.Account.Password = ""

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	pax, err := repo.ParticipantRepo.ByEmail(acc.Email)
	if err != nil {
		// accounts without a participant record (crew) still have a profile
		return profile, nil
	}
	profile.Participant = pax

	team, err := repo.TeamRepo.ForParticipant(pax.ID)
	if err != nil {
		return nil, err
	}
	profile.Team = team
	return profile, nil
}

// Participant resolves the caller's participant record for an event, or an
// error when the account's e-mail was not imported there.
func (s *AuthService) Participant(eventID, username string) (*models.Participant, error) {
	acc, err := s.accounts.ByUsername(username)
	if err != nil {
		return nil, err
	}
	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}
	return repo.ParticipantRepo.ByEmail(acc.Email)
}

// UpdateProfile edits the participant's public fields and optional photo.
// Profiles freeze once the event is over; only admins may still edit.
func (s *AuthService) UpdateProfile(ctx context.Context, eventID, username string, isAdmin bool, req UpdateProfileRequest, photo *media.Upload) (*models.Participant, error) {
	event, err := s.settings.EventByID(eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventPast && !isAdmin {
		return nil, fmt.Errorf("the event is over, profiles can no longer be changed")
	}

	pax, err := s.Participant(eventID, username)
	if err != nil {
		return nil, err
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return nil, err
	}

	pax.Bio = req.Bio
	pax.EmergencyContact = req.EmergencyContact

	if photo != nil {
		if err := utils.ValidateImageFile(photo.ContentType); err != nil {
			return nil, err
		}
		data, name, err := s.proc.ProcessPhoto(*photo)
		if err != nil {
			return nil, err
		}
		filePath := path.Join("files", eventID, "participants", slug.Make(pax.NameWeb), name)
		if err := s.store.Write(ctx, filePath, data); err != nil {
			return nil, err
		}
		thumbs, err := s.proc.Thumbnails(data)
		if err != nil {
			return nil, err
		}
		for suffix, thumb := range thumbs {
			if err := s.store.Write(ctx, media.ThumbnailPath(filePath, suffix), thumb); err != nil {
				return nil, err
			}
		}
		pax.Photo = filePath
	}

	if err := repo.ParticipantRepo.Update(pax); err != nil {
		return nil, err
	}
	return pax, nil
}

func (s *AuthService) isParticipantEmail(email string) (bool, error) {
	event, err := s.settings.DefaultEvent()
	if err != nil {
		if errors.Is(err, settings.ErrEventNotFound) {
			return false, nil
		}
		return false, err
	}

	repo, err := s.repos.ForEvent(event.ID)
	if err != nil {
		return false, err
	}

	if _, err := repo.ParticipantRepo.ByEmail(email); err != nil {
		return false, nil
	}
	return true, nil
}
