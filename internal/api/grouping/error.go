package grouping

import (
	"FaceGrouping/pkg/response"
)

var (
	ErrNoPhotos             = response.NewError(400, "At least one photo is required")
	ErrPhotoPathRequired    = response.NewError(400, "Photo path is required")
	ErrPhotoNotFound        = response.NewError(404, "Photo not found")
	ErrRunNotFound          = response.NewError(404, "grouping run not found")
	ErrRemotePhotosDisabled = response.NewError(400, "s3 photo references are not enabled")
	ErrInvalidRemotePhoto   = response.NewError(400, "invalid s3 photo reference")
)

// PhotoNotFound names the first missing photo of a /group request.
func PhotoNotFound(photo string) error {
	return response.NewErrorf(404, "Photo not found: %s", photo)
}
