package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const macDeployTool = "macdeployqt"

// deployMac lets macdeployqt rewrite the bundle and build the disk image,
// then moves the image to the archive name and drops the bundle.
func (a *Assembler) deployMac(ctx context.Context) error {
	l := a.layout
	bundle := a.abs(l.AppPath)

	a.log.Info("creating disk image...")
	a.runTool(ctx, filepath.Join(a.abs(l.QtBinDir), macDeployTool), bundle, "-qmldir="+a.abs(a.settings.QmlSourceDir), "-dmg")

	a.log.Info("moving disk image...")
	dmg := a.abs(l.DmgPath)
	if err := copyFile(dmg, a.ArchivePath()); err != nil {
		return err
	}
	if err := os.Remove(dmg); err != nil {
		return fmt.Errorf("failed to remove disk image: %w", err)
	}

	a.log.Info("cleaning app bundle...")
	if err := os.RemoveAll(bundle); err != nil {
		return fmt.Errorf("failed to remove app bundle: %w", err)
	}
	return nil
}
