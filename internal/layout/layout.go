package layout

import (
	"path/filepath"
	"strings"

	"github.com/qtdeploy/qtdeploy/internal/config"
)

// Packaging selects how a deployment is assembled and compressed.
type Packaging int

const (
	PackagingNone Packaging = iota
	PackagingZip
	PackagingTarball
	PackagingDiskImage
)

type conventions struct {
	packaging     Packaging
	exeSuffix     string
	libSuffix     string
	libPrefix     string
	archiveSuffix string
	qtLibSubdir   string
	nestedOutput  bool
	loader        string
}

var platformConventions = map[config.Platform]conventions{
	config.PlatformWindowsX86: {
		packaging:     PackagingZip,
		exeSuffix:     ".exe",
		libSuffix:     ".dll",
		archiveSuffix: ".zip",
		qtLibSubdir:   "bin",
	},
	config.PlatformWindowsX64: {
		packaging:     PackagingZip,
		exeSuffix:     ".exe",
		libSuffix:     ".dll",
		archiveSuffix: ".zip",
		qtLibSubdir:   "bin",
	},
	config.PlatformLinuxX86: {
		packaging:     PackagingTarball,
		libSuffix:     ".so",
		libPrefix:     "lib",
		archiveSuffix: ".tar.gz",
		qtLibSubdir:   "lib",
		nestedOutput:  true,
		loader:        "/lib/ld-linux.so.2",
	},
	config.PlatformLinuxX64: {
		packaging:     PackagingTarball,
		libSuffix:     ".so",
		libPrefix:     "lib",
		archiveSuffix: ".tar.gz",
		qtLibSubdir:   "lib",
		nestedOutput:  true,
		loader:        "/lib64/ld-linux-x86-64.so.2",
	},
	config.PlatformMac: {
		packaging:     PackagingDiskImage,
		exeSuffix:     ".app",
		archiveSuffix: ".dmg",
	},
}

var unknownConventions = conventions{
	packaging:   PackagingNone,
	qtLibSubdir: "lib",
}

// Layout holds every path and naming convention of a deployment. It is
// derived from the settings by Plan and never changes afterwards.
type Layout struct {
	Platform  config.Platform
	Packaging Packaging

	ExeSuffix     string
	LibSuffix     string
	LibPrefix     string
	ArchiveSuffix string

	// Target is the application file name (binary or bundle).
	Target      string
	AppPath     string
	ArchiveName string
	DmgName     string
	DmgPath     string
	Loader      string

	QtLibDir     string
	QtBinDir     string
	QmlDir       string
	PluginDir    string
	PlatformsDir string

	DeploymentDir   string
	OutLibDir       string
	OutBinDir       string
	OutPluginDir    string
	OutPlatformsDir string
	OutQmlDir       string
}

func Plan(s *config.Settings) *Layout {
	c, ok := platformConventions[s.Platform]
	if !ok {
		c = unknownConventions
	}
	l := &Layout{
		Platform:      s.Platform,
		Packaging:     c.packaging,
		ExeSuffix:     c.exeSuffix,
		LibSuffix:     c.libSuffix,
		LibPrefix:     c.libPrefix,
		ArchiveSuffix: c.archiveSuffix,
		Target:        strings.ToLower(s.Name) + c.exeSuffix,
		AppPath:       filepath.Join(s.ApplicationDir, strings.ToLower(s.Name)+c.exeSuffix),
		ArchiveName:   s.PkgName + c.archiveSuffix,
		Loader:        c.loader,
		QtBinDir:      filepath.Join(s.QtDir, "bin"),
		QmlDir:        filepath.Join(s.QtDir, "qml"),
		PluginDir:     filepath.Join(s.QtDir, "plugins"),
		PlatformsDir:  filepath.Join(s.QtDir, "plugins", "platforms"),
	}
	if c.qtLibSubdir != "" {
		l.QtLibDir = filepath.Join(s.QtDir, c.qtLibSubdir)
	}
	if c.packaging == PackagingDiskImage {
		l.DmgName = s.Name + ".dmg"
		l.DmgPath = filepath.Join(s.ApplicationDir, l.DmgName)
		return l
	}

	l.DeploymentDir = s.DeploymentDir
	l.OutLibDir = s.DeploymentDir
	l.OutBinDir = s.DeploymentDir
	if c.nestedOutput {
		l.OutLibDir = filepath.Join(s.DeploymentDir, "lib")
		l.OutBinDir = filepath.Join(s.DeploymentDir, "bin")
	}
	l.OutPluginDir = s.DeploymentDir
	l.OutPlatformsDir = filepath.Join(s.DeploymentDir, "platforms")
	l.OutQmlDir = filepath.Join(s.DeploymentDir, "qml")
	return l
}

// LibraryFileName is the unversioned file name of a shared library or
// platform plugin, e.g. "libQt5Core.so" or "Qt5Core.dll".
func (l *Layout) LibraryFileName(name string) string {
	return l.LibPrefix + name + l.LibSuffix
}

func (l *Layout) BinaryPath() string {
	return filepath.Join(l.OutBinDir, l.Target)
}

func (l *Layout) LauncherPath() string {
	return filepath.Join(l.DeploymentDir, l.Target)
}
