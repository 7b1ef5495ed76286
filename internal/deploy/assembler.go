package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qtdeploy/qtdeploy/internal/config"
	"github.com/qtdeploy/qtdeploy/internal/layout"
	"github.com/sirupsen/logrus"
)

var (
	ErrLibraryNotFound     = errors.New("library not found")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Assembler lays out a standalone copy of the application and compresses it
// into the platform's archive format.
type Assembler struct {
	log      *logrus.Entry
	settings *config.Settings
	layout   *layout.Layout
	runner   Runner
	workDir  string
}

type Option func(a *Assembler)

// WithRunner replaces the runner used for strip and macdeployqt.
func WithRunner(r Runner) Option {
	return func(a *Assembler) {
		a.runner = r
	}
}

// WithWorkDir sets the directory relative paths are resolved against and
// archive entries are named relative to. It defaults to the process's
// working directory.
func WithWorkDir(dir string) Option {
	return func(a *Assembler) {
		a.workDir = dir
	}
}

func New(log *logrus.Entry, s *config.Settings, l *layout.Layout, opts ...Option) (*Assembler, error) {
	a := &Assembler{
		log:      log,
		settings: s,
		layout:   l,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runner == nil {
		a.runner = NewExecRunner(log)
	}
	if a.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		a.workDir = wd
	}
	return a, nil
}

func (a *Assembler) abs(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.workDir, path)
}

// entryName returns the archive entry name of path: relative to the working
// directory when below it, otherwise the path without its root.
func (a *Assembler) entryName(path string) string {
	rel, err := filepath.Rel(a.workDir, path)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(rel)
	}
	path = strings.TrimPrefix(path, filepath.VolumeName(path))
	return strings.TrimLeft(filepath.ToSlash(path), "/")
}

// ArchivePath is the absolute path of the archive produced by Deploy.
func (a *Assembler) ArchivePath() string {
	return a.abs(a.layout.ArchiveName)
}

func (a *Assembler) Deploy(ctx context.Context) error {
	if err := a.Clean(); err != nil {
		return err
	}
	switch a.layout.Packaging {
	case layout.PackagingDiskImage:
		return a.deployMac(ctx)
	case layout.PackagingZip, layout.PackagingTarball:
		if err := a.copyFiles(); err != nil {
			return err
		}
		return a.compress(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, a.layout.Platform)
	}
}

// Clean removes the staging directory and the archive of a previous run.
func (a *Assembler) Clean() error {
	a.log.Info("starting cleanup...")
	if dir := a.abs(a.layout.DeploymentDir); dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove deployment directory: %w", err)
		}
	}
	archive := a.ArchivePath()
	info, err := os.Lstat(archive)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}
	if info.Mode().IsRegular() {
		if err := os.Remove(archive); err != nil {
			return fmt.Errorf("failed to remove archive: %w", err)
		}
	}
	return nil
}

func (a *Assembler) runTool(ctx context.Context, name string, args ...string) {
	a.log.Debugf("running %s %s", name, strings.Join(args, " "))
	if err := a.runner.Run(ctx, name, args...); err != nil {
		a.log.WithError(err).Warnf("%s failed, continuing", filepath.Base(name))
	}
}
