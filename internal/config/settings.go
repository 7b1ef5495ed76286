package config

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformWindowsX86
	PlatformWindowsX64
	PlatformLinuxX86
	PlatformLinuxX64
	PlatformMac
)

var platformNames = map[Platform]string{
	PlatformWindowsX86: "windows_x86",
	PlatformWindowsX64: "windows_x64",
	PlatformLinuxX86:   "linux_x86",
	PlatformLinuxX64:   "linux_x64",
	PlatformMac:        "mac",
}

// ParsePlatform maps a configured platform identifier to a Platform.
// Unrecognised identifiers yield PlatformUnknown.
func ParsePlatform(s string) Platform {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range platformNames {
		if name == s {
			return p
		}
	}
	return PlatformUnknown
}

func (p Platform) String() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return "unknown"
}

// A LibrarySpec references a shared library by its logical name, optionally
// pinned to an exact version suffix ("name:version").
type LibrarySpec struct {
	Name    string
	Version string
}

func ParseLibrarySpec(s string) LibrarySpec {
	name, version, _ := strings.Cut(strings.TrimSpace(s), ":")
	return LibrarySpec{Name: name, Version: version}
}

func ParseLibrarySpecs(values []string) []LibrarySpec {
	specs := make([]LibrarySpec, 0, len(values))
	for _, v := range values {
		spec := ParseLibrarySpec(v)
		if spec.Name == "" {
			continue
		}
		specs = append(specs, spec)
	}
	return specs
}

func (l LibrarySpec) Pinned() bool {
	return l.Version != ""
}

func (l LibrarySpec) String() string {
	if l.Pinned() {
		return fmt.Sprintf("%s:%s", l.Name, l.Version)
	}
	return l.Name
}

type Release struct {
	Name            string
	DescriptionFile string
	Description     string
	GitRef          string
	Draft           bool
	Prerelease      bool
}

type GitHub struct {
	User      string
	Password  string
	Token     string
	Owner     string
	Repo      string
	BaseURL   string
	UploadURL string
	Retries   int
}

func (g GitHub) FullRepo() string {
	return g.Owner + "/" + g.Repo
}

// HasCredentials reports whether a session can be established without
// prompting.
func (g GitHub) HasCredentials() bool {
	return g.Token != "" || (g.User != "" && g.Password != "")
}

type Mirror struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func (m Mirror) Enabled() bool {
	return m.Bucket != ""
}

// Settings is the fully resolved configuration of a run. It is built once by
// Load and must not be modified afterwards.
type Settings struct {
	Name           string
	Version        string
	Platform       Platform
	QtDir          string
	ApplicationDir string
	PkgName        string

	// non-mac platforms
	DeploymentDir   string
	LibDirs         []string
	QmlPlugins      []string
	QtPlugins       []string
	PlatformPlugins []string
	QtLibs          []LibrarySpec
	Libs            []LibrarySpec

	// mac only
	QmlSourceDir string

	Release Release
	GitHub  GitHub
	Mirror  Mirror
	Debug   bool
}

// SemVer parses the configured version. Non-semver versions are allowed, the
// caller decides whether to warn about them.
func (s *Settings) SemVer() (*semver.Version, error) {
	if s.Version == "" {
		return nil, fmt.Errorf("no version configured")
	}
	return semver.NewVersion(s.Version)
}
