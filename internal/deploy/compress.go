package deploy

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"github.com/qtdeploy/qtdeploy/internal/layout"
)

const stripTool = "strip"

var launcherTemplate = template.Must(template.New("launcher").Parse(`#!/bin/bash
if [ -z "$BASH_SOURCE" ]; then
cd "$(dirname "$(readlink -f "$0")")"
else
cd "$(dirname "${BASH_SOURCE[0]}" )"
fi
export LD_LIBRARY_PATH=` + "`pwd`" + `/lib
export QML_IMPORT_PATH=` + "`pwd`" + `/qml
export QML2_IMPORT_PATH=` + "`pwd`" + `/qml
export QT_QPA_PLATFORM_PLUGIN_PATH=` + "`pwd`" + `/platforms
export QT_PLUGIN_PATH=` + "`pwd`" + `
{{.Loader}} ` + "`pwd`" + `/bin/{{.Target}}
`))

func (a *Assembler) compress(ctx context.Context) error {
	a.log.Info("compressing files...")
	root := a.abs(a.layout.DeploymentDir)
	var (
		checksum string
		err      error
	)
	switch a.layout.Packaging {
	case layout.PackagingZip:
		if err = a.removeDebugFiles(root); err != nil {
			return err
		}
		checksum, err = a.writeZip(root, a.ArchivePath())
	case layout.PackagingTarball:
		if err = a.stripDebugInfo(ctx); err != nil {
			return err
		}
		if err = a.writeLauncher(); err != nil {
			return err
		}
		checksum, err = a.writeTarGz(root, a.ArchivePath())
	}
	if err != nil {
		return err
	}
	a.log.Infof("created %s (sha256: %s)", a.layout.ArchiveName, checksum)
	return nil
}

// removeDebugFiles deletes debug builds of libraries (e.g. Qt5Cored.dll) and
// their symbol files.
func (a *Assembler) removeDebugFiles(root string) error {
	debugLib := "d" + a.layout.LibSuffix
	return removeFiles(root, func(name string) bool {
		if strings.Contains(name, debugLib) || strings.Contains(name, "d.pdb") {
			a.log.Debugf("removing debug file %s", name)
			return true
		}
		return false
	})
}

func (a *Assembler) stripDebugInfo(ctx context.Context) error {
	err := walkFiles(a.abs(a.layout.OutLibDir), func(path string, info fs.FileInfo) error {
		if info.Mode().IsRegular() && strings.Contains(info.Name(), a.layout.LibSuffix) {
			a.runTool(ctx, stripTool, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to strip libraries: %w", err)
	}
	a.runTool(ctx, stripTool, a.abs(a.layout.BinaryPath()))
	return nil
}

// writeLauncher writes the start script that points the dynamic loader and
// Qt at the bundled directories.
func (a *Assembler) writeLauncher() error {
	path := a.abs(a.layout.LauncherPath())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := launcherTemplate.Execute(f, a.layout); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return setExecutable(path)
}
