package services

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kasnerz/letax/internal/accounts"
	"github.com/kasnerz/letax/internal/cache"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/settings"
)

// BackupService snapshots the whole deployment state: every event database,
// the settings file and the accounts file, into one zip archive.
type BackupService struct {
	dataDir   string
	backupDir string
	repos     *repositories.Manager
	settings  *settings.Store
	accounts  *accounts.Manager
	cache     *cache.TTL
}

func NewBackupService(dataDir, backupDir string, repos *repositories.Manager, st *settings.Store, acc *accounts.Manager, c *cache.TTL) *BackupService {
	return &BackupService{
		dataDir:   dataDir,
		backupDir: backupDir,
		repos:     repos,
		settings:  st,
		accounts:  acc,
		cache:     c,
	}
}

// backed-up paths, relative to the data directory
var backupPaths = []string{"db", "settings.yaml", "accounts.yaml"}

// Create writes a timestamped zip archive and returns its filename.
func (s *BackupService) Create() (string, error) {
	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("db_%s.zip", time.Now().Format("2006-01-02_15-04-05"))
	target := filepath.Join(s.backupDir, name)

	f, err := os.Create(target)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	for _, rel := range backupPaths {
		root := filepath.Join(s.dataDir, rel)
		info, err := os.Stat(root)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}

		if !info.IsDir() {
			if err := addZipFile(w, root, rel); err != nil {
				return "", err
			}
			continue
		}
		err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			relPath, err := filepath.Rel(s.dataDir, path)
			if err != nil {
				return err
			}
			return addZipFile(w, path, filepath.ToSlash(relPath))
		})
		if err != nil {
			return "", err
		}
	}

	if err := w.Close(); err != nil {
		return "", err
	}
	logrus.WithField("backup", name).Info("backup created")
	return name, nil
}

// List returns the available backup filenames, newest first.
func (s *BackupService) List() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".zip") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Restore replaces the deployment state with a backup's content. All open
// database handles are dropped first and the flat-file stores reloaded after,
// so the running process picks the restored state up without a restart.
func (s *BackupService) Restore(name string) error {
	if name != filepath.Base(name) {
		return fmt.Errorf("invalid backup name %q", name)
	}
	source := filepath.Join(s.backupDir, name)

	r, err := zip.OpenReader(source)
	if err != nil {
		return fmt.Errorf("cannot open backup %s: %w", name, err)
	}
	defer r.Close()

	s.repos.Reset()

	for _, f := range r.File {
		if err := extractZipFile(f, s.dataDir); err != nil {
			return err
		}
	}

	if err := s.settings.Reload(); err != nil {
		return err
	}
	if err := s.accounts.Reload(); err != nil {
		return err
	}
	s.cache.Purge()

	logrus.WithField("backup", name).Info("backup restored")
	return nil
}

func addZipFile(w *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := w.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

func extractZipFile(f *zip.File, destDir string) error {
	// refuse entries escaping the data directory
	target := filepath.Join(destDir, filepath.FromSlash(f.Name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("backup entry %q escapes the data directory", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
