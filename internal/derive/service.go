// Package derive turns a reference changeset and a user intent into a
// batch of proposed differences via an LLM.
package derive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/tildaslashalef/prtwin/internal/changeset"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/difference"
	"github.com/tildaslashalef/prtwin/internal/extractor"
	"github.com/tildaslashalef/prtwin/internal/llm"
	"github.com/tildaslashalef/prtwin/internal/loggy"
)

// ErrDerivationFailed indicates no usable difference batch could be
// produced within the retry budget
var ErrDerivationFailed = errors.New("difference derivation failed")

// ErrUnresolvableReference indicates a derived difference pointed at a
// changeset region that does not exist
var ErrUnresolvableReference = errors.New("difference references unknown changeset region")

// Service derives proposed differences from a reference changeset
type Service struct {
	llmClient llm.Client
	extractor *extractor.JSONExtractor
	config    *config.Config
	logger    *loggy.Logger
}

// NewService creates a new derivation service
func NewService(client llm.Client, cfg *config.Config, logger *loggy.Logger) *Service {
	return &Service{
		llmClient: client,
		extractor: extractor.NewJSONExtractor(logger),
		config:    cfg,
		logger:    logger,
	}
}

// llmDifference is the wire shape of one derived difference
type llmDifference struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Path        string `json:"path"`
	Hunk        *int   `json:"hunk,omitempty"`
	Hunks       []int  `json:"hunks,omitempty"`
	Instruction string `json:"instruction"`
}

// llmDifferenceList is the wire shape of the derivation response
type llmDifferenceList struct {
	Differences []llmDifference `json:"differences"`
}

// Derive produces the proposed differences between the reference
// changeset and the intent. Individual malformed items are dropped with
// a warning; a fully unusable response is retried up to the configured
// budget before failing with ErrDerivationFailed.
func (s *Service) Derive(ctx context.Context, cs *changeset.ChangeSet, intent string) ([]*difference.Difference, error) {
	prompt, err := buildPrompt(cs, intent, s.config.Extract.FileSizeCutoff)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Derivation prompt built",
		"changeset", cs.ID,
		"files", len(cs.Edits),
		"prompt_bytes", len(prompt))

	var raw llmDifferenceList
	operation := func() error {
		resp, err := s.llmClient.GenerateCompletion(ctx, llm.GenerateRequest{
			System:    systemPrompt,
			Prompt:    prompt,
			MaxTokens: s.config.Extract.MaxTokens,
		})
		if err != nil {
			if !llm.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		jsonStr, err := s.extractor.ExtractObject(resp.Content)
		if err != nil {
			// The model may produce parseable output on another attempt
			return fmt.Errorf("extracting response payload: %w", err)
		}

		raw = llmDifferenceList{}
		if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
			return fmt.Errorf("parsing response payload: %w", err)
		}

		return nil
	}

	err = backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.config.Extract.MaxRetries)), ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrDerivationFailed, err)
	}

	return s.validate(cs, raw.Differences), nil
}

// validate filters the raw items into well-formed, deduplicated
// differences in proposal order
func (s *Service) validate(cs *changeset.ChangeSet, items []llmDifference) []*difference.Difference {
	var out []*difference.Difference
	seen := make(map[string]bool)

	for i, item := range items {
		d, err := s.resolve(cs, item)
		if err != nil {
			s.logger.Warn("Dropping malformed difference",
				"index", i,
				"path", item.Path,
				"category", item.Category,
				"error", err)
			continue
		}

		// First occurrence wins; duplicates add nothing
		key := d.DedupKey()
		if seen[key] {
			s.logger.Debug("Dropping duplicate difference", "index", i, "key", key)
			continue
		}
		seen[key] = true

		out = append(out, d)
	}

	return out
}

// resolve turns one raw item into a Difference, verifying its changeset
// references
func (s *Service) resolve(cs *changeset.ChangeSet, item llmDifference) (*difference.Difference, error) {
	category, ok := difference.ParseCategory(item.Category)
	if !ok {
		return nil, fmt.Errorf("unknown category %q", item.Category)
	}

	if strings.TrimSpace(item.Instruction) == "" {
		return nil, fmt.Errorf("empty instruction")
	}

	fe, ok := cs.Edit(item.Path)
	if !ok {
		return nil, fmt.Errorf("%w: path %q", ErrUnresolvableReference, item.Path)
	}

	indexes := item.Hunks
	if len(indexes) == 0 && item.Hunk != nil {
		indexes = []int{*item.Hunk}
	}
	if len(indexes) == 0 && len(fe.Hunks) > 0 {
		// Only a single-hunk file has an unambiguous default target
		if len(fe.Hunks) > 1 {
			return nil, fmt.Errorf("%w: path %q has %d hunks and none was named",
				ErrUnresolvableReference, item.Path, len(fe.Hunks))
		}
		indexes = []int{0}
	}

	var origins []difference.Origin
	for _, idx := range indexes {
		if idx < 0 || idx >= len(fe.Hunks) {
			return nil, fmt.Errorf("%w: path %q hunk %d", ErrUnresolvableReference, item.Path, idx)
		}
		origins = append(origins, difference.Origin{Path: item.Path, HunkIndex: idx})
	}
	if len(origins) == 0 {
		// Hunkless files (binary, rename-only) are still addressable
		origins = []difference.Origin{{Path: item.Path, HunkIndex: -1}}
	}

	description := strings.TrimSpace(item.Description)
	if description == "" {
		description = item.Instruction
	}

	return difference.New(description, category, origins, item.Instruction), nil
}
