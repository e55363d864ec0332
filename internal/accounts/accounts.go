package accounts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/utils"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Account is one login identity. It is independent of Participant and linked
// to it by a matching e-mail address.
type Account struct {
	Username   string `yaml:"-" json:"username"`
	Email      string `yaml:"email" json:"email"`
	Name       string `yaml:"name" json:"name"`
	Password   string `yaml:"password" json:"-"` // bcrypt hash
	Role       string `yaml:"role" json:"role"`
	Registered string `yaml:"registered" json:"registered"`
}

type credentials struct {
	Usernames map[string]Account `yaml:"usernames"`
}

type fileFormat struct {
	Credentials         credentials       `yaml:"credentials"`
	PreauthorizedEmails map[string]string `yaml:"preauthorized_emails"` // email -> role
}

// Manager is the flat-file credential store: username -> account plus the
// preauthorized-email allowlist. Accounts never live in the relational store.
type Manager struct {
	mu         sync.RWMutex
	path       string
	data       fileFormat
	emailIndex map[string]string // lower-cased email -> username
}

func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads the accounts file, e.g. after a backup restore.
func (m *Manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = fileFormat{
		Credentials:         credentials{Usernames: map[string]Account{}},
		PreauthorizedEmails: map[string]string{},
	}

	raw, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read accounts file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &m.data); err != nil {
		return fmt.Errorf("failed to parse accounts file: %w", err)
	}
	if m.data.Credentials.Usernames == nil {
		m.data.Credentials.Usernames = map[string]Account{}
	}
	if m.data.PreauthorizedEmails == nil {
		m.data.PreauthorizedEmails = map[string]string{}
	}

	m.recomputeIndex()
	return nil
}

func (m *Manager) recomputeIndex() {
	m.emailIndex = make(map[string]string, len(m.data.Credentials.Usernames))
	for username, acc := range m.data.Credentials.Usernames {
		m.emailIndex[strings.ToLower(acc.Email)] = username
	}
}

func (m *Manager) save() error {
	raw, err := yaml.Marshal(&m.data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(m.path, raw, 0600); err != nil {
		return err
	}
	m.recomputeIndex()
	return nil
}

// ByUsername returns the account or ErrUserNotFound.
func (m *Manager) ByUsername(username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.data.Credentials.Usernames[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	acc.Username = username
	return &acc, nil
}

// ByEmail returns the account with the given e-mail, case-insensitive.
func (m *Manager) ByEmail(email string) (*Account, error) {
	m.mu.RLock()
	username, ok := m.emailIndex[strings.ToLower(email)]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	return m.ByUsername(username)
}

// Add registers a new account with a bcrypt-hashed password.
func (m *Manager) Add(username, email, name, password, role string) (*Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if username == "" || email == "" {
		return nil, errors.New("username and email are required")
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data.Credentials.Usernames[username]; ok {
		return nil, ErrUserExists
	}
	if _, ok := m.emailIndex[email]; ok {
		return nil, ErrUserExists
	}

	acc := Account{
		Email:      email,
		Name:       name,
		Password:   hash,
		Role:       role,
		Registered: time.Now().Format("2006-01-02 15:04:05"),
	}
	m.data.Credentials.Usernames[username] = acc
	if err := m.save(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"username": username, "role": role}).Info("account created")
	acc.Username = username
	return &acc, nil
}

// Authenticate verifies a username (or e-mail) and password pair.
func (m *Manager) Authenticate(login, password string) (*Account, error) {
	acc, err := m.ByUsername(login)
	if err != nil {
		acc, err = m.ByEmail(login)
	}
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := utils.CheckPassword(password, acc.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// SetPassword replaces the stored hash.
func (m *Manager) SetPassword(username, newPassword string) error {
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.data.Credentials.Usernames[username]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	acc.Password = hash
	m.data.Credentials.Usernames[username] = acc
	return m.save()
}

// SetRole changes an account's role.
func (m *Manager) SetRole(username, role string) error {
	if role != models.RoleUser && role != models.RoleAdmin {
		return fmt.Errorf("invalid role: %s", role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.data.Credentials.Usernames[username]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	acc.Role = role
	m.data.Credentials.Usernames[username] = acc
	return m.save()
}

// List returns all accounts sorted by username, password hashes omitted.
func (m *Manager) List() []Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Account, 0, len(m.data.Credentials.Usernames))
	for username, acc := range m.data.Credentials.Usernames {
		acc.Username = username
		acc.Password = ""
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// PreauthorizedEmails lists e-mails allowed to register without being
// participants (admins, crew).
func (m *Manager) PreauthorizedEmails() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.data.PreauthorizedEmails))
	for email, role := range m.data.PreauthorizedEmails {
		out[email] = role
	}
	return out
}

func (m *Manager) IsPreauthorized(email string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data.PreauthorizedEmails[strings.ToLower(email)]
	return ok
}

func (m *Manager) AddPreauthorized(email, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.PreauthorizedEmails[strings.ToLower(email)] = role
	return m.save()
}

func (m *Manager) RemovePreauthorized(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data.PreauthorizedEmails, strings.ToLower(email))
	return m.save()
}
