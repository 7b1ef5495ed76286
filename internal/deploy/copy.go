package deploy

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// copyEntry copies src to dest. Symlinks are re-created with the same target
// so soname chains such as libfoo.so -> libfoo.so.1 survive the copy.
func copyEntry(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", src, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return copyFile(src, dest)
	}
	target, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("failed to read link %q: %w", src, err)
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %q: %w", dest, err)
	}
	if err := os.Symlink(target, dest); err != nil {
		return fmt.Errorf("failed to create link %q: %w", dest, err)
	}
	return nil
}

// copyFile copies the content of src (following symlinks) to dest, creating
// or truncating it. Permission bits are taken from the source.
func copyFile(src, dest string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file %q: %w", src, err)
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file %q: %w", src, err)
	}

	destFile, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file %q: %w", dest, err)
	}
	if _, err := io.Copy(destFile, srcFile); err != nil {
		destFile.Close()
		return fmt.Errorf("failed to copy file content from %q to %q: %w", src, dest, err)
	}
	return destFile.Close()
}

// copyTree replaces destDir with a copy of srcDir.
func copyTree(srcDir, destDir string) error {
	srcInfo, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("failed to stat source directory %q: %w", srcDir, err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %q is not a directory", srcDir)
	}
	if err := os.RemoveAll(destDir); err != nil {
		return fmt.Errorf("failed to remove destination directory %q: %w", destDir, err)
	}

	return filepath.WalkDir(srcDir, func(srcPath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		relPath, err := filepath.Rel(srcDir, srcPath)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %q: %w", srcPath, err)
		}
		destPath := filepath.Join(destDir, relPath)
		if entry.IsDir() {
			return os.MkdirAll(destPath, 0o755)
		}
		return copyEntry(srcPath, destPath)
	})
}

// removeFiles deletes every regular file or link below root for which match
// returns true.
func removeFiles(root string, match func(name string) bool) error {
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !match(entry.Name()) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %q: %w", path, err)
		}
		return nil
	})
}

func makeDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	return nil
}
