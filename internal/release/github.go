package release

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v59/github"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/qtdeploy/qtdeploy/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// retryLogger forwards retryablehttp's leveled log output to logrus.
type retryLogger struct {
	log *logrus.Entry
}

func (l *retryLogger) withFields(keysAndValues []interface{}) *logrus.Entry {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.log.WithFields(fields)
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.withFields(keysAndValues).Error(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.withFields(keysAndValues).Info(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.withFields(keysAndValues).Debug(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.withFields(keysAndValues).Warn(msg)
}

func newRetryableClient(log *logrus.Entry, retries int) *http.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.Logger = &retryLogger{log: log}
	return client.StandardClient()
}

// NewGitHubClient creates a GitHub API client authenticated with the token
// if one is configured, otherwise with basic auth.
func NewGitHubClient(ctx context.Context, log *logrus.Entry, cfg config.GitHub) (*github.Client, error) {
	baseClient := newRetryableClient(log, cfg.Retries)

	var httpClient *http.Client
	if cfg.Token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, baseClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	} else {
		tp := &github.BasicAuthTransport{
			Username:  cfg.User,
			Password:  cfg.Password,
			Transport: baseClient.Transport,
		}
		httpClient = tp.Client()
	}

	ghClient := github.NewClient(httpClient)
	if cfg.BaseURL == "" {
		return ghClient, nil
	}
	uploadURL := cfg.UploadURL
	if uploadURL == "" {
		uploadURL = cfg.BaseURL
	}
	ghClient, err := ghClient.WithEnterpriseURLs(cfg.BaseURL, uploadURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub Enterprise URL: %w", err)
	}
	return ghClient, nil
}

// findRelease scans all releases of the repository for the one with the
// given tag. It returns nil if no such release exists.
func findRelease(ctx context.Context, ghClient *github.Client, owner, repo, tag string) (*github.RepositoryRelease, error) {
	opts := &github.ListOptions{Page: 1, PerPage: 100}
	for {
		releases, resp, err := ghClient.Repositories.ListReleases(ctx, owner, repo, opts)
		if err != nil {
			return nil, err
		}
		for _, release := range releases {
			if release.GetTagName() == tag {
				return release, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return nil, nil
}
