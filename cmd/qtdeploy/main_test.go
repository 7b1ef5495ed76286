package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/qtdeploy/qtdeploy/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// writeProject creates a minimal windows project, which needs no external
// tools to deploy, and returns the config file path.
func writeProject(t *testing.T) (string, string) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "qt", "bin", "Qt5Core.dll"), "core")
	writeFile(t, filepath.Join(root, "qt", "plugins", "platforms", "qwindows.dll"), "qwindows")
	writeFile(t, filepath.Join(root, "build", "myapp.exe"), "MZ")
	writeFile(t, filepath.Join(root, "notes.md"), "release notes")

	cfg := fmt.Sprintf(`name = "MyApp"
version = "1.0.0"

[Deployment]
platform = windows_x64
qtDir = %[1]s/qt
applicationDir = %[1]s/build
pkgName = %[1]s/myapp-win64
deploymentDir = %[1]s/deploy
libDir =
qmlPlugins =
qtPlugins =
platformPlugins = qwindows
qtLibs = Qt5Core
libs =

[GitHub]
repo = owner/repo

[Release]
name = "MyApp 1.0"
description = %[1]s/notes.md
`, filepath.ToSlash(root))
	path := filepath.Join(root, "qtdeploy.ini")
	writeFile(t, path, cfg)
	return root, path
}

func runWithFlags(t *testing.T, flags []string, args []string) error {
	log := newTestLogger()
	cmd := newRootCmd(log)
	require.NoError(t, cmd.ParseFlags(flags))
	return run(log, cmd, args)
}

func TestRunWithoutConfig(t *testing.T) {
	cmd := newRootCmd(newTestLogger())
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := run(newTestLogger(), cmd, nil)
	require.ErrorIs(t, err, config.ErrNoConfigFile)
}

func TestRunDeployAndClean(t *testing.T) {
	root, cfg := writeProject(t)
	require.NoError(t, runWithFlags(t, []string{"--deploy"}, []string{cfg}))
	require.FileExists(t, filepath.Join(root, "myapp-win64.zip"))
	require.FileExists(t, filepath.Join(root, "deploy", "myapp.exe"))
	require.FileExists(t, filepath.Join(root, "deploy", "platforms", "qwindows.dll"))

	require.NoError(t, runWithFlags(t, []string{"--clean"}, []string{cfg}))
	require.NoFileExists(t, filepath.Join(root, "myapp-win64.zip"))
	require.NoDirExists(t, filepath.Join(root, "deploy"))
}

func TestRunMirrorWithoutBucket(t *testing.T) {
	_, cfg := writeProject(t)
	err := runWithFlags(t, []string{"--mirror"}, []string{cfg})
	require.ErrorIs(t, err, errNoMirror)
}

func TestRunInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.ini")
	writeFile(t, path, "name = MyApp\n")
	err := runWithFlags(t, []string{"--deploy"}, []string{path})
	require.ErrorIs(t, err, config.ErrMissingKey)
}

func TestFlags(t *testing.T) {
	cmd := newRootCmd(newTestLogger())
	require.NoError(t, cmd.ParseFlags([]string{"-v", "2.0.0", "-u", "octocat", "-r", "-P", "-t", "main", "-d"}))
	flags := cmd.Flags()
	require.Equal(t, "2.0.0", must(flags.GetString("version")))
	require.Equal(t, "octocat", must(flags.GetString("user")))
	require.True(t, must(flags.GetBool("draft")))
	require.True(t, must(flags.GetBool("prerelease")))
	require.Equal(t, "main", must(flags.GetString("tag")))
	require.True(t, must(flags.GetBool("debug")))
	require.False(t, must(flags.GetBool("publish")))
}
