package deploy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qtdeploy/qtdeploy/internal/layout"
)

const qmlTypesFile = "plugins.qmltypes"

// copyFiles builds the staging tree: libraries, platform plugins, the
// application binary, QML modules and Qt plugins.
func (a *Assembler) copyFiles() error {
	a.log.Info("copying files...")
	l := a.layout

	outLibDir := a.abs(l.OutLibDir)
	if err := makeDir(outLibDir); err != nil {
		return err
	}
	if err := a.copyQtLibraries(outLibDir); err != nil {
		return err
	}
	if err := a.copyAppLibraries(outLibDir); err != nil {
		return err
	}

	outPlatformsDir := a.abs(l.OutPlatformsDir)
	if err := makeDir(outPlatformsDir); err != nil {
		return err
	}
	for _, plugin := range a.settings.PlatformPlugins {
		name := l.LibraryFileName(plugin)
		a.log.Debugf("copying platform plugin %s", name)
		if err := copyFile(filepath.Join(a.abs(l.PlatformsDir), name), filepath.Join(outPlatformsDir, name)); err != nil {
			return err
		}
	}

	if err := makeDir(a.abs(l.OutBinDir)); err != nil {
		return err
	}
	binary := a.abs(l.BinaryPath())
	if err := copyFile(a.abs(l.AppPath), binary); err != nil {
		return err
	}
	if l.Packaging == layout.PackagingTarball {
		if err := setExecutable(binary); err != nil {
			return err
		}
	}

	for _, module := range a.settings.QmlPlugins {
		a.log.Debugf("copying QML module %s", module)
		if err := copyTree(filepath.Join(a.abs(l.QmlDir), module), filepath.Join(a.abs(l.OutQmlDir), module)); err != nil {
			return err
		}
	}
	for _, plugin := range a.settings.QtPlugins {
		a.log.Debugf("copying Qt plugin %s", plugin)
		if err := copyTree(filepath.Join(a.abs(l.PluginDir), plugin), filepath.Join(a.abs(l.OutPluginDir), plugin)); err != nil {
			return err
		}
	}

	return removeFiles(a.abs(l.OutQmlDir), func(name string) bool {
		return name == qmlTypesFile
	})
}

func setExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if err := os.Chmod(path, info.Mode()|0o100); err != nil {
		return fmt.Errorf("failed to make %q executable: %w", path, err)
	}
	return nil
}
