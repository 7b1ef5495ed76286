package deploy

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// walkFiles calls fn for every non-directory entry below root in lexical
// order.
func walkFiles(root string, fn func(path string, info fs.FileInfo) error) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		info, err := os.Lstat(path)
		if err != nil {
			return err
		}
		return fn(path, info)
	})
}

func addFileToTar(tarWriter *tar.Writer, name, path string, info fs.FileInfo) error {
	link := ""
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return fmt.Errorf("failed to read link %q: %w", path, err)
		}
		link = target
	}
	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("failed to create tar header for %q: %w", path, err)
	}
	header.Name = name
	if err := tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(tarWriter, f); err != nil {
		return fmt.Errorf("failed to write tar file: %w", err)
	}
	return nil
}

// writeTarGz archives every file below root into a gzip compressed tarball
// at archivePath and returns the archive's SHA-256 checksum.
func (a *Assembler) writeTarGz(root, archivePath string) (string, error) {
	tgzFile, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer tgzFile.Close()

	tgzHash := sha256.New()
	gzipWriter := gzip.NewWriter(io.MultiWriter(tgzFile, tgzHash))
	tarWriter := tar.NewWriter(gzipWriter)
	err = walkFiles(root, func(path string, info fs.FileInfo) error {
		return addFileToTar(tarWriter, a.entryName(path), path, info)
	})
	if err != nil {
		return "", fmt.Errorf("failed to add file to tar archive: %w", err)
	}
	if err := tarWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return hex.EncodeToString(tgzHash.Sum(nil)), nil
}

func addFileToZip(zipWriter *zip.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header for %q: %w", path, err)
	}
	header.Name = name
	header.Method = zip.Deflate
	w, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header: %w", err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write zip file: %w", err)
	}
	return nil
}

// writeZip deflates every file below root into a zip archive at archivePath
// and returns the archive's SHA-256 checksum.
func (a *Assembler) writeZip(root, archivePath string) (string, error) {
	zipFile, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer zipFile.Close()

	zipHash := sha256.New()
	zipWriter := zip.NewWriter(io.MultiWriter(zipFile, zipHash))
	err = walkFiles(root, func(path string, _ fs.FileInfo) error {
		return addFileToZip(zipWriter, a.entryName(path), path)
	})
	if err != nil {
		return "", fmt.Errorf("failed to add file to zip archive: %w", err)
	}
	if err := zipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close zip writer: %w", err)
	}
	return hex.EncodeToString(zipHash.Sum(nil)), nil
}
