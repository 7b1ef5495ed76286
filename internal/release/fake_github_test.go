package release

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/require"
)

type fakeAsset struct {
	asset     *github.ReleaseAsset
	mediaType string
	content   []byte
}

// fakeGitHub is a stateful stand-in for the releases API of a single
// repository "owner/repo".
type fakeGitHub struct {
	mu          sync.Mutex
	nextID      int64
	releases    map[int64]*github.RepositoryRelease
	assets      map[int64]*fakeAsset
	failUploads bool
	hits        map[string]int
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *github.Client) {
	f := &fakeGitHub{
		nextID:   1,
		releases: make(map[int64]*github.RepositoryRelease),
		assets:   make(map[int64]*fakeAsset),
		hits:     make(map[string]int),
	}
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)

	ghClient := github.NewClient(nil)
	u, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	ghClient.BaseURL = u
	ghClient.UploadURL = u
	return f, ghClient
}

func (f *fakeGitHub) router() http.Handler {
	r := chi.NewRouter()
	r.Use(f.countMiddleware)
	r.Get("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &github.User{Login: github.String("octocat")})
	})
	r.Route("/repos/{owner}/{repo}", func(r chi.Router) {
		r.Use(f.repoMiddleware)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, &github.Repository{
				ID:       github.Int64(1),
				Name:     github.String("repo"),
				FullName: github.String("owner/repo"),
			})
		})
		r.Get("/releases", f.listReleases)
		r.Post("/releases", f.createRelease)
		r.Patch("/releases/{id}", f.editRelease)
		r.Delete("/releases/{id}", f.deleteRelease)
		r.Post("/releases/{id}/assets", f.uploadAsset)
		r.Delete("/releases/assets/{id}", f.deleteAsset)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (f *fakeGitHub) countMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.Method+" "+r.URL.Path]++
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *fakeGitHub) hitCount(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

func (f *fakeGitHub) repoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "owner") != "owner" || chi.URLParam(r, "repo") != "repo" {
			writeMessage(w, http.StatusNotFound, "Not Found")
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func idParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func (f *fakeGitHub) sortedReleases() []*github.RepositoryRelease {
	ret := make([]*github.RepositoryRelease, 0, len(f.releases))
	for _, release := range f.releases {
		ret = append(ret, release)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].GetID() < ret[j].GetID()
	})
	return ret
}

func (f *fakeGitHub) listReleases(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 30
	}
	releases := f.sortedReleases()
	start := (page - 1) * perPage
	if start > len(releases) {
		start = len(releases)
	}
	end := start + perPage
	if end < len(releases) {
		next := *r.URL
		q := next.Query()
		q.Set("page", strconv.Itoa(page+1))
		next.RawQuery = q.Encode()
		w.Header().Set("Link", fmt.Sprintf(`<http://%s%s>; rel="next"`, r.Host, next.RequestURI()))
	} else {
		end = len(releases)
	}
	writeJSON(w, http.StatusOK, releases[start:end])
}

func (f *fakeGitHub) addRelease(release *github.RepositoryRelease) *github.RepositoryRelease {
	release.ID = github.Int64(f.nextID)
	release.HTMLURL = github.String(fmt.Sprintf("https://github.com/owner/repo/releases/tag/%s", release.GetTagName()))
	f.nextID++
	f.releases[release.GetID()] = release
	return release
}

func (f *fakeGitHub) createRelease(w http.ResponseWriter, r *http.Request) {
	var req github.RepositoryRelease
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, release := range f.releases {
		if release.GetTagName() == req.GetTagName() {
			writeMessage(w, http.StatusUnprocessableEntity, "Validation Failed")
			return
		}
	}
	writeJSON(w, http.StatusCreated, f.addRelease(&req))
}

func (f *fakeGitHub) editRelease(w http.ResponseWriter, r *http.Request) {
	release, ok := f.releases[idParam(r)]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	var req github.RepositoryRelease
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	release.TagName = req.TagName
	release.Name = req.Name
	release.Body = req.Body
	release.Draft = req.Draft
	release.Prerelease = req.Prerelease
	if req.TargetCommitish != nil {
		release.TargetCommitish = req.TargetCommitish
	}
	writeJSON(w, http.StatusOK, release)
}

func (f *fakeGitHub) deleteRelease(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	if _, ok := f.releases[id]; !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	delete(f.releases, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeGitHub) uploadAsset(w http.ResponseWriter, r *http.Request) {
	release, ok := f.releases[idParam(r)]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	name := r.URL.Query().Get("name")
	if f.failUploads {
		writeMessage(w, http.StatusUnprocessableEntity, "Validation Failed")
		return
	}
	for _, asset := range release.Assets {
		if asset.GetName() == name {
			writeMessage(w, http.StatusUnprocessableEntity, "Validation Failed")
			return
		}
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	asset := &github.ReleaseAsset{
		ID:                 github.Int64(f.nextID),
		Name:               github.String(name),
		Size:               github.Int(len(content)),
		ContentType:        github.String(r.Header.Get("Content-Type")),
		BrowserDownloadURL: github.String(fmt.Sprintf("https://github.com/owner/repo/releases/download/%s/%s", release.GetTagName(), name)),
	}
	f.nextID++
	f.assets[asset.GetID()] = &fakeAsset{asset: asset, mediaType: asset.GetContentType(), content: content}
	release.Assets = append(release.Assets, asset)
	writeJSON(w, http.StatusCreated, asset)
}

func (f *fakeGitHub) deleteAsset(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	if _, ok := f.assets[id]; !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	delete(f.assets, id)
	for _, release := range f.releases {
		for i, asset := range release.Assets {
			if asset.GetID() == id {
				release.Assets = append(release.Assets[:i], release.Assets[i+1:]...)
				break
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeGitHub) releasesByTag(tag string) []*github.RepositoryRelease {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([]*github.RepositoryRelease, 0)
	for _, release := range f.sortedReleases() {
		if release.GetTagName() == tag {
			ret = append(ret, release)
		}
	}
	return ret
}

func (f *fakeGitHub) asset(id int64) *fakeAsset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assets[id]
}
