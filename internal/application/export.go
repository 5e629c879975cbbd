package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ericfisherdev/artsengine/internal/domain/model"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// KeyGitHubToken is the storage key of the export token.
const KeyGitHubToken = "github.token"

// DefaultExportRepo is the repository offered when none is given.
const DefaultExportRepo = "modelearth/requests"

const exportCommitMessage = "Arts Engine: add generated image"

// ExportReport summarizes one export run.
type ExportReport struct {
	Repo   string
	Folder string
	Saved  int
	Files  []string
	Errors []string
}

// Summary renders the report as a status line.
func (r ExportReport) Summary() string {
	if len(r.Errors) > 0 {
		return fmt.Sprintf("Saved %d with %d error(s): %s", r.Saved, len(r.Errors), r.Errors[0])
	}
	return fmt.Sprintf("Saved %d image(s) to %s/%s", r.Saved, r.Repo, r.Folder)
}

// ExportService commits generated media to a GitHub repository.
type ExportService struct {
	store       driven.KVStore
	exporter    driven.RepoExporter
	fetcher     driven.MediaFetcher
	bus         *StatusBus
	limiter     *rate.Limiter
	defaultRepo string
	now         func() time.Time
}

// ExportOption configures an ExportService.
type ExportOption func(*ExportService)

// WithExportLimiter paces uploads. The default allows two per second.
func WithExportLimiter(l *rate.Limiter) ExportOption {
	return func(s *ExportService) { s.limiter = l }
}

// WithDefaultRepo overrides DefaultExportRepo.
func WithDefaultRepo(repo string) ExportOption {
	return func(s *ExportService) {
		if repo != "" {
			s.defaultRepo = repo
		}
	}
}

// WithExportClock overrides the time source used for file and folder names.
func WithExportClock(now func() time.Time) ExportOption {
	return func(s *ExportService) { s.now = now }
}

// NewExportService creates an ExportService.
func NewExportService(
	store driven.KVStore,
	exporter driven.RepoExporter,
	fetcher driven.MediaFetcher,
	bus *StatusBus,
	opts ...ExportOption,
) *ExportService {
	s := &ExportService{
		store:       store,
		exporter:    exporter,
		fetcher:     fetcher,
		bus:         bus,
		limiter:     rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		defaultRepo: DefaultExportRepo,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultRepo returns the repository offered by default.
func (s *ExportService) DefaultRepo() string { return s.defaultRepo }

// DefaultFolder returns generated/<YYYY-MM-DD> for today.
func (s *ExportService) DefaultFolder() string {
	return "generated/" + s.now().UTC().Format(time.DateOnly)
}

// SetToken verifies token against GitHub and stores it. It returns the
// authenticated login.
func (s *ExportService) SetToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", &ValidationError{Message: "GitHub token must not be empty"}
	}

	login, err := s.exporter.ValidateToken(ctx, token)
	if err != nil {
		return "", &ValidationError{Message: "GitHub token rejected: " + err.Error()}
	}
	if err := s.store.Set(ctx, KeyGitHubToken, token); err != nil {
		return "", fmt.Errorf("save github token: %w", err)
	}

	slog.Info("github token stored", "login", login)
	return login, nil
}

// ClearToken forgets the stored token.
func (s *ExportService) ClearToken(ctx context.Context) error {
	if err := s.store.Delete(ctx, KeyGitHubToken); err != nil {
		return fmt.Errorf("delete github token: %w", err)
	}
	return nil
}

// HasToken reports whether a token is stored.
func (s *ExportService) HasToken(ctx context.Context) (bool, error) {
	_, ok, err := s.store.Get(ctx, KeyGitHubToken)
	if err != nil {
		return false, fmt.Errorf("load github token: %w", err)
	}
	return ok, nil
}

// Export uploads every media result to repo under folder. Individual upload
// failures are collected in the report; only setup problems and context
// cancellation are returned as errors.
func (s *ExportService) Export(ctx context.Context, results []model.Result, repo, folder string) (ExportReport, error) {
	token, ok, err := s.store.Get(ctx, KeyGitHubToken)
	if err != nil {
		return ExportReport{}, fmt.Errorf("load github token: %w", err)
	}
	if !ok || token == "" {
		return ExportReport{}, ErrNoExportToken
	}

	media := make([]model.Result, 0, len(results))
	for _, r := range results {
		if r.URL != "" {
			media = append(media, r)
		}
	}
	if len(media) == 0 {
		return ExportReport{}, ErrNothingToExport
	}

	repo = strings.TrimSpace(repo)
	if repo == "" {
		repo = s.defaultRepo
	}
	if owner, name, found := strings.Cut(repo, "/"); !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return ExportReport{}, &ValidationError{Message: fmt.Sprintf("repository %q must be owner/name", repo)}
	}
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = s.DefaultFolder()
	}

	s.bus.Publish(model.StatusInfo, "Saving to GitHub…", "")
	report := ExportReport{Repo: repo, Folder: folder}

	for _, item := range media {
		if err := s.limiter.Wait(ctx); err != nil {
			return report, err
		}

		name, err := s.upload(ctx, token, repo, folder, item, report.Saved+1)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			slog.Warn("export upload failed", "repo", repo, "url", item.URL, "error", err)
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		report.Saved++
		report.Files = append(report.Files, name)
	}

	level := model.StatusSuccess
	if len(report.Errors) > 0 {
		level = model.StatusError
	}
	s.bus.Publish(level, report.Summary(), "")
	slog.Info("export complete", "repo", repo, "folder", folder, "saved", report.Saved, "errors", len(report.Errors))
	return report, nil
}

func (s *ExportService) upload(ctx context.Context, token, repo, folder string, item model.Result, seq int) (string, error) {
	data, err := s.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}

	ext := ".jpg"
	if item.Kind == model.OutputVideo {
		ext = ".mp4"
	}
	name := path.Join(folder, fmt.Sprintf("scene-%d-%d%s", s.now().UnixMilli(), seq, ext))

	err = s.exporter.PutFile(ctx, token, driven.RepoFile{
		Repo:    repo,
		Path:    name,
		Message: exportCommitMessage,
		Content: data,
	})
	if err != nil {
		return "", err
	}
	return name, nil
}
