package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	gh "github.com/google/go-github/v59/github"

	"github.com/tildaslashalef/prtwin/internal/changeset"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/loggy"
)

// Errors surfaced to callers instead of raw transport failures
var (
	// ErrInvalidPRURL indicates the reference could not be parsed
	ErrInvalidPRURL = errors.New("invalid pull request reference")

	// ErrPRNotFound indicates the referenced pull request does not exist
	ErrPRNotFound = errors.New("pull request not found")

	// ErrRateLimited indicates the GitHub API throttled the request
	ErrRateLimited = errors.New("GitHub rate limit exceeded")

	// ErrAuth indicates missing or insufficient GitHub credentials
	ErrAuth = errors.New("GitHub authentication failed")
)

// Accepted reference formats: a full URL, a bare host form, and the
// short owner/repo form
var prURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+)/pull/(\d+)(?:[/?#].*)?$`),
	regexp.MustCompile(`^[^/]+\.[^/]+/([^/]+)/([^/]+)/pull/(\d+)$`),
	regexp.MustCompile(`^([^/]+)/([^/]+)/pull/(\d+)$`),
}

// PRRef identifies one pull request
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r PRRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ParsePRURL parses a pull request reference in any accepted format
func ParsePRURL(s string) (PRRef, error) {
	for _, pattern := range prURLPatterns {
		if match := pattern.FindStringSubmatch(s); match != nil {
			number, err := strconv.Atoi(match[3])
			if err != nil {
				continue
			}
			return PRRef{Owner: match[1], Repo: match[2], Number: number}, nil
		}
	}
	return PRRef{}, fmt.Errorf("%w: %q", ErrInvalidPRURL, s)
}

// PRHandle points at a created pull request
type PRHandle struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// CreatePRParams describes a pull request to create
type CreatePRParams struct {
	Title string
	Body  string
	Head  string // branch carrying the changes
	Base  string // branch to merge into
	Draft bool
}

// Service wraps the GitHub client with changeset-level operations
type Service struct {
	client *gh.Client
	config *config.Config
	logger *loggy.Logger
}

// NewService creates a new GitHub service
func NewService(cfg *config.Config, logger *loggy.Logger) (*Service, error) {
	client, err := NewClient(cfg.GitHub)
	if err != nil {
		return nil, err
	}

	return &Service{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// NewServiceWithClient creates a service around an existing client,
// used by tests
func NewServiceWithClient(client *gh.Client, cfg *config.Config, logger *loggy.Logger) *Service {
	return &Service{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// FetchChangeSet retrieves the reference pull request and builds a
// changeset from its file-level patches
func (s *Service) FetchChangeSet(ctx context.Context, prURL string) (*changeset.ChangeSet, error) {
	ref, err := ParsePRURL(prURL)
	if err != nil {
		return nil, err
	}

	pr, resp, err := s.client.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return nil, s.mapError(resp, err)
	}

	cs := changeset.New(prURL)
	cs.Title = pr.GetTitle()
	cs.Body = pr.GetBody()
	cs.Author = pr.GetUser().GetLogin()
	cs.BaseBranch = pr.GetBase().GetRef()
	cs.HeadBranch = pr.GetHead().GetRef()

	opts := &gh.ListOptions{PerPage: 100}
	for {
		files, resp, err := s.client.PullRequests.ListFiles(ctx, ref.Owner, ref.Repo, ref.Number, opts)
		if err != nil {
			return nil, s.mapError(resp, err)
		}

		for _, f := range files {
			fe, err := changeset.ParseFileEdit(
				f.GetFilename(),
				f.GetPreviousFilename(),
				f.GetStatus(),
				f.GetPatch(),
				f.GetAdditions(),
				f.GetDeletions(),
			)
			if err != nil {
				// Keep the file visible with its counts even when the
				// patch itself is unusable
				s.logger.Warn("Dropping unparseable patch", "path", f.GetFilename(), "error", err)
				fe = changeset.FileEdit{
					Path:      f.GetFilename(),
					Kind:      changeset.ParseEditKind(f.GetStatus()),
					Additions: f.GetAdditions(),
					Deletions: f.GetDeletions(),
				}
			}
			if err := cs.AddEdit(fe); err != nil {
				s.logger.Warn("Dropping duplicate file entry", "path", fe.Path, "error", err)
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	s.logger.Info("Fetched reference changeset",
		"pr", ref.String(),
		"changeset", cs.ID,
		"files", len(cs.Edits))

	return cs, nil
}

// CreatePR opens a pull request in the given repository
func (s *Service) CreatePR(ctx context.Context, owner, repo string, params CreatePRParams) (*PRHandle, error) {
	pr, resp, err := s.client.PullRequests.Create(ctx, owner, repo, &gh.NewPullRequest{
		Title: gh.String(params.Title),
		Body:  gh.String(params.Body),
		Head:  gh.String(params.Head),
		Base:  gh.String(params.Base),
		Draft: gh.Bool(params.Draft),
	})
	if err != nil {
		return nil, s.mapError(resp, err)
	}

	handle := &PRHandle{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
	}

	s.logger.Info("Created pull request", "repo", owner+"/"+repo, "number", handle.Number, "url", handle.URL)
	return handle, nil
}

// mapError translates GitHub API failures into the service's error
// taxonomy
func (s *Service) mapError(resp *gh.Response, err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: resets at %s", ErrRateLimited, rateErr.Rate.Reset.Time)
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: secondary limit", ErrRateLimited)
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrPRNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	return fmt.Errorf("GitHub API request: %w", err)
}
