package release

import "errors"

var (
	ErrAuthentication     = errors.New("authentication failed")
	ErrRepositoryNotFound = errors.New("repository not found")
	// ErrNoRelease is returned when an asset is uploaded before a release was
	// created or updated in the same run.
	ErrNoRelease = errors.New("no release to upload to")
)

// UploadError reports an asset upload that was attempted and failed.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return "uploading file failed"
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
