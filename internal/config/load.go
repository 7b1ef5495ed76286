package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

var (
	ErrNoConfigFile      = errors.New("no config file specified")
	ErrMissingKey        = errors.New("missing config key")
	ErrInvalidRepository = errors.New("invalid repository, expected owner/name")
)

const (
	sectionDefault    = "DEFAULT"
	sectionDeployment = "Deployment"
	sectionGitHub     = "GitHub"
	sectionRelease    = "Release"
	sectionMirror     = "Mirror"
)

// Overrides are the values supplied on the command line. They take
// precedence over the environment and the config file.
type Overrides struct {
	Version    string
	User       string
	Password   string
	GitRef     string
	Draft      bool
	Prerelease bool
	Debug      bool
}

type fileReader struct {
	file *ini.File
}

func trimValue(v string) string {
	return strings.Trim(strings.TrimSpace(v), `"`)
}

func (r *fileReader) optional(section, key string) string {
	sec, err := r.file.GetSection(section)
	if err != nil || !sec.HasKey(key) {
		return ""
	}
	return trimValue(sec.Key(key).String())
}

func (r *fileReader) required(section, key string) (string, error) {
	sec, err := r.file.GetSection(section)
	if err != nil || !sec.HasKey(key) {
		return "", fmt.Errorf("%w: [%s] %s", ErrMissingKey, section, key)
	}
	return trimValue(sec.Key(key).String()), nil
}

func (r *fileReader) requiredList(section, key string) ([]string, error) {
	v, err := r.required(section, key)
	if err != nil {
		return nil, err
	}
	return splitList(v), nil
}

func splitList(v string) []string {
	ret := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		ret = append(ret, item)
	}
	return ret
}

func expandUser(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func parseRepository(v string) (string, string, error) {
	parts := strings.Split(v, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, v)
	}
	return parts[0], parts[1], nil
}

func readDescription(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read release description: %w", err)
	}
	return string(data), nil
}

// Load reads the config file at path and merges it with the environment and
// the command line overrides.
func Load(path string, o *Overrides, env *Environment) (*Settings, error) {
	if path == "" {
		return nil, ErrNoConfigFile
	}
	if o == nil {
		o = &Overrides{}
	}
	if env == nil {
		env = &Environment{}
	}
	file, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	r := &fileReader{file: file}

	s := &Settings{Debug: o.Debug}
	if s.Name, err = r.required(sectionDefault, "name"); err != nil {
		return nil, err
	}
	s.Version = firstNonEmpty(o.Version, r.optional(sectionDefault, "version"))

	platform, err := r.required(sectionDeployment, "platform")
	if err != nil {
		return nil, err
	}
	s.Platform = ParsePlatform(platform)
	if s.QtDir, err = r.required(sectionDeployment, "qtDir"); err != nil {
		return nil, err
	}
	if s.ApplicationDir, err = r.required(sectionDeployment, "applicationDir"); err != nil {
		return nil, err
	}
	if s.PkgName, err = r.required(sectionDeployment, "pkgName"); err != nil {
		return nil, err
	}
	s.QtDir = expandUser(s.QtDir)
	s.ApplicationDir = expandUser(s.ApplicationDir)
	s.PkgName = expandUser(s.PkgName)

	if s.Platform == PlatformMac {
		if s.QmlSourceDir, err = r.required(sectionDeployment, "qmlSourceDir"); err != nil {
			return nil, err
		}
		s.QmlSourceDir = expandUser(s.QmlSourceDir)
	} else if err = loadDeployment(r, s); err != nil {
		return nil, err
	}

	if err = loadGitHub(r, s, o, env); err != nil {
		return nil, err
	}

	s.Release.GitRef = o.GitRef
	s.Release.Draft = o.Draft
	s.Release.Prerelease = o.Prerelease
	if s.Release.Name, err = r.required(sectionRelease, "name"); err != nil {
		return nil, err
	}
	if s.Release.DescriptionFile, err = r.required(sectionRelease, "description"); err != nil {
		return nil, err
	}
	s.Release.DescriptionFile = expandUser(s.Release.DescriptionFile)
	if s.Release.Description, err = readDescription(s.Release.DescriptionFile); err != nil {
		return nil, err
	}

	s.Mirror = Mirror{
		Bucket:          r.optional(sectionMirror, "bucket"),
		Endpoint:        r.optional(sectionMirror, "endpoint"),
		Region:          r.optional(sectionMirror, "region"),
		AccessKeyID:     firstNonEmpty(env.MirrorAccessKeyID, r.optional(sectionMirror, "accessKeyId")),
		SecretAccessKey: firstNonEmpty(env.MirrorSecretAccessKey, r.optional(sectionMirror, "secretAccessKey")),
		Prefix:          r.optional(sectionMirror, "prefix"),
	}
	return s, nil
}

func loadDeployment(r *fileReader, s *Settings) error {
	var err error
	if s.DeploymentDir, err = r.required(sectionDeployment, "deploymentDir"); err != nil {
		return err
	}
	s.DeploymentDir = expandUser(s.DeploymentDir)

	libDirs, err := r.requiredList(sectionDeployment, "libDir")
	if err != nil {
		return err
	}
	for _, dir := range libDirs {
		s.LibDirs = append(s.LibDirs, expandUser(dir))
	}
	if s.QmlPlugins, err = r.requiredList(sectionDeployment, "qmlPlugins"); err != nil {
		return err
	}
	if s.QtPlugins, err = r.requiredList(sectionDeployment, "qtPlugins"); err != nil {
		return err
	}
	if s.PlatformPlugins, err = r.requiredList(sectionDeployment, "platformPlugins"); err != nil {
		return err
	}
	qtLibs, err := r.requiredList(sectionDeployment, "qtLibs")
	if err != nil {
		return err
	}
	s.QtLibs = ParseLibrarySpecs(qtLibs)
	libs, err := r.requiredList(sectionDeployment, "libs")
	if err != nil {
		return err
	}
	s.Libs = ParseLibrarySpecs(libs)
	return nil
}

func loadGitHub(r *fileReader, s *Settings, o *Overrides, env *Environment) error {
	repo, err := r.required(sectionGitHub, "repo")
	if err != nil {
		return err
	}
	owner, name, err := parseRepository(repo)
	if err != nil {
		return err
	}
	s.GitHub = GitHub{
		User:      firstNonEmpty(o.User, env.GitHubUser, r.optional(sectionGitHub, "user")),
		Password:  firstNonEmpty(o.Password, env.GitHubPassword, r.optional(sectionGitHub, "password")),
		Token:     firstNonEmpty(env.GitHubToken, r.optional(sectionGitHub, "token")),
		Owner:     owner,
		Repo:      name,
		BaseURL:   r.optional(sectionGitHub, "baseUrl"),
		UploadURL: r.optional(sectionGitHub, "uploadUrl"),
		Retries:   env.GitHubRetries,
	}
	return nil
}
