package services

import (
	"archive/zip"
	"context"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/jlaffaye/ftp"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/settings"
	"github.com/kasnerz/letax/internal/storage"
)

const exportConcurrency = 4

// ExportService renders a finished event as a static HTML site: an index
// with the final standings and one page per team with all its posts. The
// site is self-contained and can be served from any dumb web host.
type ExportService struct {
	exportDir string
	repos     *repositories.Manager
	settings  *settings.Store
	scoring   *ScoringService
	store     storage.Storage
}

func NewExportService(exportDir string, repos *repositories.Manager, st *settings.Store, scoring *ScoringService, store storage.Storage) *ExportService {
	return &ExportService{
		exportDir: exportDir,
		repos:     repos,
		settings:  st,
		scoring:   scoring,
		store:     store,
	}
}

// ExportSite renders the event under <exportDir>/<eventID>/ and returns the
// path of the zip archive of the whole site. baseURL ends up in the QR codes
// printed on the team pages; it may be empty.
func (s *ExportService) ExportSite(ctx context.Context, eventID, baseURL string) (string, error) {
	event, err := s.settings.EventByID(eventID)
	if err != nil {
		return "", err
	}

	repo, err := s.repos.ForEvent(eventID)
	if err != nil {
		return "", err
	}

	board, err := s.scoring.Leaderboard(eventID)
	if err != nil {
		return "", err
	}

	siteDir := filepath.Join(s.exportDir, eventID)
	if err := os.RemoveAll(siteDir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(siteDir, 0755); err != nil {
		return "", err
	}

	pages := make([]teamPageData, len(board))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)
	for i := range board {
		i := i
		g.Go(func() error {
			page, err := s.renderTeamPage(gctx, siteDir, baseURL, event, repo, &board[i])
			if err != nil {
				return fmt.Errorf("team %s: %w", board[i].Name, err)
			}
			pages[i] = *page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if err := s.renderIndex(siteDir, event, pages); err != nil {
		return "", err
	}

	zipPath := filepath.Join(s.exportDir, fmt.Sprintf("site_%s.zip", eventID))
	if err := zipDirectory(siteDir, zipPath); err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{"event_id": eventID, "teams": len(pages)}).Info("static site exported")
	return zipPath, nil
}

// UploadFTP pushes a previously exported site to a plain FTP host.
func (s *ExportService) UploadFTP(ctx context.Context, eventID, addr, user, password, remoteRoot string) error {
	siteDir := filepath.Join(s.exportDir, eventID)
	if _, err := os.Stat(siteDir); err != nil {
		return fmt.Errorf("no exported site for event %s, run the export first", eventID)
	}

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("cannot connect to %s: %w", addr, err)
	}
	defer conn.Quit()

	if err := conn.Login(user, password); err != nil {
		return fmt.Errorf("FTP login failed: %w", err)
	}

	return filepath.Walk(siteDir, func(localPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(siteDir, localPath)
		if err != nil {
			return err
		}
		remote := path.Join(remoteRoot, filepath.ToSlash(rel))

		if info.IsDir() {
			if rel == "." {
				return nil
			}
			// MakeDir fails when the directory exists, which is fine
			_ = conn.MakeDir(remote)
			return nil
		}

		f, err := os.Open(localPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := conn.Stor(remote, f); err != nil {
			return fmt.Errorf("failed to upload %s: %w", remote, err)
		}
		return nil
	})
}

type teamPageData struct {
	Event    *settings.Event
	Team     TeamOverview
	Slug     string
	Posts    []exportPost
	QRFile   string
	Exported string
}

type exportPost struct {
	Title   string
	Type    string
	Date    string
	Comment string
	Images  []string
	Videos  []string
}

type indexData struct {
	Event    *settings.Event
	Teams    []teamPageData
	InfoText string
	Exported string
}

func (s *ExportService) renderTeamPage(ctx context.Context, siteDir, baseURL string, event *settings.Event, repo *repositories.Repository, team *TeamOverview) (*teamPageData, error) {
	teamSlug := slug.Make(team.Name)
	teamDir := filepath.Join(siteDir, "teams", teamSlug)
	if err := os.MkdirAll(filepath.Join(teamDir, "files"), 0755); err != nil {
		return nil, err
	}

	posts, err := repo.PostRepo.ByTeam(team.TeamID)
	if err != nil {
		return nil, err
	}

	page := &teamPageData{
		Event:    event,
		Team:     *team,
		Slug:     teamSlug,
		Exported: time.Now().Format("2006-01-02 15:04"),
	}

	for i := range posts {
		post := &posts[i]
		ep := exportPost{
			Title:   post.ActionName,
			Type:    post.ActionType,
			Date:    post.Created.Format("2006-01-02 15:04"),
			Comment: post.Comment,
		}
		for _, f := range post.Files {
			local, err := s.copyMedia(ctx, teamDir, f)
			if err != nil {
				logrus.WithError(err).WithField("path", f.Path).Warn("skipping missing media file in export")
				continue
			}
			if strings.HasPrefix(f.MIME, "video/") {
				ep.Videos = append(ep.Videos, local)
			} else {
				ep.Images = append(ep.Images, local)
			}
		}
		page.Posts = append(page.Posts, ep)
	}

	if baseURL != "" {
		pageURL := fmt.Sprintf("%s/teams/%s/", strings.TrimSuffix(baseURL, "/"), teamSlug)
		if err := qrcode.WriteFile(pageURL, qrcode.Medium, 256, filepath.Join(teamDir, "qr.png")); err != nil {
			return nil, err
		}
		page.QRFile = "qr.png"
	}

	f, err := os.Create(filepath.Join(teamDir, "index.html"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := teamTemplate.Execute(f, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *ExportService) renderIndex(siteDir string, event *settings.Event, pages []teamPageData) error {
	f, err := os.Create(filepath.Join(siteDir, "index.html"))
	if err != nil {
		return err
	}
	defer f.Close()

	return indexTemplate.Execute(f, indexData{
		Event:    event,
		Teams:    pages,
		InfoText: s.settings.InfoText(),
		Exported: time.Now().Format("2006-01-02 15:04"),
	})
}

// copyMedia pulls one stored file plus its web thumbnail into the team
// directory and returns the page-relative path.
func (s *ExportService) copyMedia(ctx context.Context, teamDir string, file models.PostFile) (string, error) {
	data, err := s.store.Read(ctx, file.Path)
	if err != nil {
		return "", err
	}

	name := path.Base(file.Path)
	if err := os.WriteFile(filepath.Join(teamDir, "files", name), data, 0644); err != nil {
		return "", err
	}

	if strings.HasPrefix(file.MIME, "image/") {
		thumbPath := media.ThumbnailPath(file.Path, "1000")
		if thumb, err := s.store.Read(ctx, thumbPath); err == nil {
			thumbName := path.Base(thumbPath)
			if err := os.WriteFile(filepath.Join(teamDir, "files", thumbName), thumb, 0644); err != nil {
				return "", err
			}
		}
	}
	return "files/" + name, nil
}

func zipDirectory(dir, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addZipFile(w, path, filepath.ToSlash(rel))
	})
	if err != nil {
		return err
	}
	return w.Close()
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>X-Challenge {{.Event.Year}}</title>
<link href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/css/bootstrap.min.css" rel="stylesheet">
</head>
<body>
<div class="container py-4">
<h1 class="mb-4">X-Challenge {{.Event.Year}}</h1>
{{if .InfoText}}<p class="lead">{{.InfoText}}</p>{{end}}
<table class="table table-striped">
<thead><tr><th>#</th><th>Team</th><th>Members</th><th>Points</th><th>Award</th></tr></thead>
<tbody>
{{range $i, $t := .Teams}}
<tr>
<td>{{$i}}</td>
<td><a href="teams/{{$t.Slug}}/">{{$t.Team.Name}}</a></td>
<td>{{range $j, $m := $t.Team.MemberNames}}{{if $j}}, {{end}}{{$m}}{{end}}</td>
<td>{{$t.Team.Points}}</td>
<td>{{$t.Team.Award}}</td>
</tr>
{{end}}
</tbody>
</table>
<footer class="text-muted mt-5"><small>Exported {{.Exported}}</small></footer>
</div>
</body>
</html>
`))

var teamTemplate = template.Must(template.New("team").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Team.Name}} &middot; X-Challenge {{.Event.Year}}</title>
<link href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/css/bootstrap.min.css" rel="stylesheet">
</head>
<body>
<div class="container py-4">
<nav class="mb-3"><a href="../../">&larr; Standings</a></nav>
<h1>{{.Team.Name}}</h1>
{{if .Team.Motto}}<p class="fst-italic">{{.Team.Motto}}</p>{{end}}
<p>
{{range $j, $m := .Team.MemberNames}}{{if $j}}, {{end}}{{$m}}{{end}}
&middot; {{.Team.Points}} points
{{if .Team.Award}}&middot; <span class="badge bg-warning text-dark">{{.Team.Award}}</span>{{end}}
</p>
{{if .QRFile}}<img src="{{.QRFile}}" alt="QR code" width="128" height="128" class="mb-3">{{end}}
{{range .Posts}}
<div class="card mb-3 post">
<div class="card-body">
<h3 class="card-title post-title">{{.Title}}</h3>
<h6 class="card-subtitle text-muted post-date">{{.Date}}</h6>
{{if .Comment}}<p class="card-text">{{.Comment}}</p>{{end}}
<div class="d-flex flex-wrap gap-2">
{{range .Images}}<a href="{{.}}"><img src="{{.}}" class="img-thumbnail" style="max-width:240px"></a>{{end}}
{{range .Videos}}<video src="{{.}}" controls style="max-width:320px"></video>{{end}}
</div>
</div>
</div>
{{end}}
<footer class="text-muted mt-5"><small>Exported {{.Exported}}</small></footer>
</div>
</body>
</html>
`))
