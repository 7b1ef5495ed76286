package deploy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qtdeploy/qtdeploy/internal/config"
)

func versionedName(fileName string, spec config.LibrarySpec) string {
	return fileName + "." + spec.Version
}

// hasLibrary reports whether dir can satisfy spec: any entry containing
// fileName for unpinned specs, the exact versioned file for pinned ones.
func hasLibrary(dir, fileName string, spec config.LibrarySpec) bool {
	if spec.Pinned() {
		info, err := os.Stat(filepath.Join(dir, versionedName(fileName, spec)))
		return err == nil && !info.IsDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), fileName) {
			return true
		}
	}
	return false
}

// copyLibrary copies the library fileName from srcDir into destDir. A pinned
// spec copies exactly "<fileName>.<version>"; otherwise every entry whose
// name contains fileName is copied, which picks up all soname links.
func (a *Assembler) copyLibrary(srcDir, fileName string, spec config.LibrarySpec, destDir string) error {
	if spec.Pinned() {
		name := versionedName(fileName, spec)
		src := filepath.Join(srcDir, name)
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
		}
		a.log.Debugf("copying %s", src)
		return copyFile(src, filepath.Join(destDir, name))
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read library directory: %w", err)
	}
	found := false
	for i := len(entries) - 1; i >= 0; i-- {
		name := entries[i].Name()
		if !strings.Contains(name, fileName) {
			continue
		}
		a.log.Debugf("copying %s", filepath.Join(srcDir, name))
		if err := copyEntry(filepath.Join(srcDir, name), filepath.Join(destDir, name)); err != nil {
			return err
		}
		found = true
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrLibraryNotFound, fileName)
	}
	return nil
}

func (a *Assembler) copyQtLibraries(destDir string) error {
	srcDir := a.abs(a.layout.QtLibDir)
	for _, spec := range a.settings.QtLibs {
		if err := a.copyLibrary(srcDir, a.layout.LibraryFileName(spec.Name), spec, destDir); err != nil {
			return err
		}
	}
	return nil
}

// copyAppLibraries copies each application library from the first configured
// library directory that provides it.
func (a *Assembler) copyAppLibraries(destDir string) error {
	for _, spec := range a.settings.Libs {
		fileName := a.layout.LibraryFileName(spec.Name)
		copied := false
		for _, dir := range a.settings.LibDirs {
			dir = a.abs(dir)
			if !hasLibrary(dir, fileName, spec) {
				continue
			}
			if err := a.copyLibrary(dir, fileName, spec, destDir); err != nil {
				return err
			}
			copied = true
			break
		}
		if !copied {
			return fmt.Errorf("could not find library %s: %w", fileName, ErrLibraryNotFound)
		}
	}
	return nil
}
