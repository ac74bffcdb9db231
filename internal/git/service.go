// Package git materializes a produced changeset into a local working
// copy: branch, file edits, commit, push.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/goombaio/namegenerator"

	"github.com/tildaslashalef/prtwin/internal/changeset"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/loggy"
)

// Service operates on one local repository
type Service struct {
	repo   *gogit.Repository
	path   string
	config config.GitConfig
	logger *loggy.Logger
}

// NewService opens the repository at the configured path
func NewService(cfg config.GitConfig, logger *loggy.Logger) (*Service, error) {
	path := cfg.RepoPath
	if path == "" {
		path = "."
	}

	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}

	return &Service{
		repo:   repo,
		path:   path,
		config: cfg,
		logger: logger,
	}, nil
}

// GenerateBranchName returns a fresh, human-readable branch name with
// the configured prefix
func (s *Service) GenerateBranchName() string {
	name := namegenerator.NewNameGenerator(time.Now().UnixNano()).Generate()
	prefix := s.config.BranchPrefix
	if prefix == "" {
		prefix = "prtwin"
	}
	return prefix + "/" + name
}

// CreateBranch creates and checks out a new branch at the current HEAD
func (s *Service) CreateBranch(name string) error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	err = wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	})
	if err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}

	s.logger.Info("Created branch", "branch", name)
	return nil
}

// Materialize writes the changeset's file edits into the working copy
// and stages them. A modified hunk whose old content is not found in
// the file on disk fails with an edit conflict.
func (s *Service) Materialize(cs *changeset.ChangeSet) error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	for _, fe := range cs.Edits {
		if err := s.materializeEdit(fe); err != nil {
			return err
		}

		if fe.Kind == changeset.KindDeleted {
			if _, err := wt.Remove(fe.Path); err != nil {
				return fmt.Errorf("staging removal of %s: %w", fe.Path, err)
			}
			continue
		}
		if fe.Kind == changeset.KindRenamed && fe.OldPath != "" {
			if _, err := wt.Remove(fe.OldPath); err != nil {
				return fmt.Errorf("staging removal of %s: %w", fe.OldPath, err)
			}
		}
		if _, err := wt.Add(fe.Path); err != nil {
			return fmt.Errorf("staging %s: %w", fe.Path, err)
		}
	}

	s.logger.Info("Materialized changeset", "changeset", cs.ID, "files", len(cs.Edits))
	return nil
}

func (s *Service) materializeEdit(fe changeset.FileEdit) error {
	target := filepath.Join(s.path, fe.Path)

	switch fe.Kind {
	case changeset.KindAdded:
		var content strings.Builder
		for _, h := range fe.Hunks {
			content.WriteString(h.NewText)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", fe.Path, err)
		}
		if err := os.WriteFile(target, []byte(content.String()), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", fe.Path, err)
		}
		return nil

	case changeset.KindDeleted:
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", fe.Path, err)
		}
		return nil

	case changeset.KindRenamed:
		if fe.OldPath != "" {
			source := filepath.Join(s.path, fe.OldPath)
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating directory for %s: %w", fe.Path, err)
			}
			if err := os.Rename(source, target); err != nil {
				return fmt.Errorf("renaming %s to %s: %w", fe.OldPath, fe.Path, err)
			}
		}
		return s.patchFile(target, fe)

	default:
		return s.patchFile(target, fe)
	}
}

// patchFile applies hunks to an existing file by exact old-text
// replacement
func (s *Service) patchFile(target string, fe changeset.FileEdit) error {
	data, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("reading %s: %w", fe.Path, err)
	}

	content := string(data)
	for _, h := range fe.Hunks {
		if h.OldText == h.NewText {
			continue
		}
		if !strings.Contains(content, h.OldText) {
			return fmt.Errorf("%w: file %s does not contain expected content at old line %d",
				changeset.ErrEditConflict, fe.Path, h.OldStart)
		}
		content = strings.Replace(content, h.OldText, h.NewText, 1)
	}

	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", fe.Path, err)
	}
	return nil
}

// Commit records the staged edits and returns the commit hash
func (s *Service) Commit(message string) (string, error) {
	wt, err := s.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	name := s.config.CommitName
	if name == "" {
		name = "prtwin"
	}
	email := s.config.CommitEmail
	if email == "" {
		email = "prtwin@localhost"
	}

	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  name,
			Email: email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	s.logger.Info("Committed changeset", "hash", hash.String())
	return hash.String(), nil
}

// Push pushes the current branch to the configured remote using the
// given token
func (s *Service) Push(ctx context.Context, token string) error {
	remote := s.config.Remote
	if remote == "" {
		remote = "origin"
	}

	opts := &gogit.PushOptions{RemoteName: remote}
	if token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}

	if err := s.repo.PushContext(ctx, opts); err != nil {
		return fmt.Errorf("pushing to %s: %w", remote, err)
	}

	s.logger.Info("Pushed branch", "remote", remote)
	return nil
}
