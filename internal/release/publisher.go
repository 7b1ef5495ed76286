package release

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/go-github/v59/github"
	"github.com/patrickmn/go-cache"
	"github.com/qtdeploy/qtdeploy/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	cacheKeyUser             = "user"
	cacheKeyPrefixRepository = "repository"
	cacheKeyPrefixRelease    = "release"
)

// Publisher keeps exactly one GitHub release per release name and attaches
// the deployment archive to it. The authenticated user, the repository and
// the resolved release are cached, so a publish followed by an unpublish in
// the same run only looks them up once.
type Publisher struct {
	log      *logrus.Entry
	ghClient *github.Client
	gh       config.GitHub
	release  config.Release
	tag      string
	cache    *cache.Cache
}

func NewPublisher(log *logrus.Entry, ghClient *github.Client, gh config.GitHub, r config.Release) *Publisher {
	tag := Tag(r.Name)
	return &Publisher{
		log:      log.WithField("tag", tag),
		ghClient: ghClient,
		gh:       gh,
		release:  r,
		tag:      tag,
		cache:    cache.New(cache.NoExpiration, 0),
	}
}

func (p *Publisher) releaseCacheKey() string {
	return fmt.Sprintf("%s/%s/%s", cacheKeyPrefixRelease, p.gh.FullRepo(), p.tag)
}

// Release returns the release resolved by UpdateRelease, if any.
func (p *Publisher) Release() (*github.RepositoryRelease, bool) {
	cached, ok := p.cache.Get(p.releaseCacheKey())
	if !ok {
		return nil, false
	}
	return cached.(*github.RepositoryRelease), true
}

// Login checks that the client's credentials are accepted.
func (p *Publisher) Login(ctx context.Context) error {
	if _, ok := p.cache.Get(cacheKeyUser); ok {
		return nil
	}
	p.log.Info("logging in...")
	user, _, err := p.ghClient.Users.Get(ctx, "")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	p.log.Debugf("logged in as %s", user.GetLogin())
	p.cache.Set(cacheKeyUser, user, cache.NoExpiration)
	return nil
}

func (p *Publisher) Repository(ctx context.Context) (*github.Repository, error) {
	key := fmt.Sprintf("%s/%s", cacheKeyPrefixRepository, p.gh.FullRepo())
	if cached, ok := p.cache.Get(key); ok {
		return cached.(*github.Repository), nil
	}
	p.log.Infof("looking up repository %s...", p.gh.FullRepo())
	repo, resp, err := p.ghClient.Repositories.Get(ctx, p.gh.Owner, p.gh.Repo)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, p.gh.FullRepo())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s: %w", p.gh.FullRepo(), err)
	}
	if repo == nil {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, p.gh.FullRepo())
	}
	p.cache.Set(key, repo, cache.NoExpiration)
	return repo, nil
}

func (p *Publisher) releaseRequest() *github.RepositoryRelease {
	req := &github.RepositoryRelease{
		TagName:    github.String(p.tag),
		Name:       github.String(p.release.Name),
		Body:       github.String(p.release.Description),
		Draft:      github.Bool(p.release.Draft),
		Prerelease: github.Bool(p.release.Prerelease),
	}
	if p.release.GitRef != "" {
		req.TargetCommitish = github.String(p.release.GitRef)
	}
	return req
}

// UpdateRelease edits the release with the publisher's tag or creates it if
// it does not exist yet.
func (p *Publisher) UpdateRelease(ctx context.Context) (*github.RepositoryRelease, error) {
	p.log.Info("updating release...")
	existing, err := findRelease(ctx, p.ghClient, p.gh.Owner, p.gh.Repo, p.tag)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}

	var release *github.RepositoryRelease
	if existing != nil {
		p.log.Debugf("editing release %d", existing.GetID())
		release, _, err = p.ghClient.Repositories.EditRelease(ctx, p.gh.Owner, p.gh.Repo, existing.GetID(), p.releaseRequest())
		if err != nil {
			return nil, fmt.Errorf("failed to edit release: %w", err)
		}
	} else {
		p.log.Debug("creating release")
		release, _, err = p.ghClient.Repositories.CreateRelease(ctx, p.gh.Owner, p.gh.Repo, p.releaseRequest())
		if err != nil {
			return nil, fmt.Errorf("failed to create release: %w", err)
		}
	}
	p.cache.Set(p.releaseCacheKey(), release, cache.NoExpiration)
	return release, nil
}

// RemoveRelease deletes the release with the publisher's tag. A missing
// release is not an error.
func (p *Publisher) RemoveRelease(ctx context.Context) error {
	p.log.Info("removing release...")
	existing, err := findRelease(ctx, p.ghClient, p.gh.Owner, p.gh.Repo, p.tag)
	if err != nil {
		return fmt.Errorf("failed to list releases: %w", err)
	}
	p.cache.Delete(p.releaseCacheKey())
	if existing == nil {
		p.log.Info("release does not exist")
		return nil
	}
	if _, err := p.ghClient.Repositories.DeleteRelease(ctx, p.gh.Owner, p.gh.Repo, existing.GetID()); err != nil {
		return fmt.Errorf("failed to delete release: %w", err)
	}
	return nil
}

// UploadAsset attaches the file at path to the release resolved by
// UpdateRelease. An asset with the same name is replaced.
func (p *Publisher) UploadAsset(ctx context.Context, path string) (*github.ReleaseAsset, error) {
	release, ok := p.Release()
	if !ok {
		return nil, ErrNoRelease
	}
	name := filepath.Base(path)
	p.log.Infof("uploading %s...", name)

	f, err := os.Open(path)
	if err != nil {
		return nil, &UploadError{Path: path, Err: err}
	}
	defer f.Close()

	for _, asset := range release.Assets {
		if asset.GetName() != name {
			continue
		}
		p.log.Debugf("deleting existing asset %d", asset.GetID())
		if _, err := p.ghClient.Repositories.DeleteReleaseAsset(ctx, p.gh.Owner, p.gh.Repo, asset.GetID()); err != nil {
			return nil, &UploadError{Path: path, Err: err}
		}
	}

	opts := &github.UploadOptions{Name: name, MediaType: MediaType(path)}
	asset, _, err := p.ghClient.Repositories.UploadReleaseAsset(ctx, p.gh.Owner, p.gh.Repo, release.GetID(), opts, f)
	if err != nil {
		return nil, &UploadError{Path: path, Err: err}
	}
	p.log.Debugf("uploaded %s", asset.GetBrowserDownloadURL())
	return asset, nil
}

// Publish runs the whole publish chain. Each step must succeed before the
// next one starts.
func (p *Publisher) Publish(ctx context.Context, archivePath string) error {
	if err := p.Login(ctx); err != nil {
		return err
	}
	if _, err := p.Repository(ctx); err != nil {
		return err
	}
	release, err := p.UpdateRelease(ctx)
	if err != nil {
		return err
	}
	if _, err := p.UploadAsset(ctx, archivePath); err != nil {
		return err
	}
	p.log.Infof("published %s", release.GetHTMLURL())
	return nil
}

func (p *Publisher) Unpublish(ctx context.Context) error {
	if err := p.Login(ctx); err != nil {
		return err
	}
	if _, err := p.Repository(ctx); err != nil {
		return err
	}
	return p.RemoveRelease(ctx)
}
