// Package github fetches reference pull requests and creates result
// pull requests via the GitHub API.
package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v59/github"
	"golang.org/x/oauth2"

	"github.com/tildaslashalef/prtwin/internal/config"
)

const defaultAPIURL = "https://api.github.com"

// NewClient creates an authenticated GitHub API client from config.
// A non-default API URL is treated as a GitHub Enterprise endpoint.
func NewClient(cfg config.GitHubConfig) (*gh.Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("GitHub token not configured")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	if cfg.RequestTimeout > 0 {
		tc.Timeout = cfg.RequestTimeout
	}

	client := gh.NewClient(tc)

	apiURL := strings.TrimSuffix(cfg.APIURL, "/")
	if apiURL != "" && apiURL != defaultAPIURL {
		var err error
		client, err = client.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise API URL: %w", err)
		}
	}

	return client, nil
}
