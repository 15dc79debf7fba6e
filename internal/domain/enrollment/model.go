package enrollment

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Limits enforced by the face enrollment service.
const (
	MaxImages    = 10
	MaxImageSize = 10 * 1024 * 1024
)

// Domain errors
var (
	ErrEmptyImage    = errors.New("image is empty")
	ErrImageTooLarge = fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	ErrNotAnImage    = errors.New("file is not an image")
	ErrBadExtension  = errors.New("image must be .jpg, .jpeg or .png")
	ErrTooManyImages = fmt.Errorf("at most %d images per enrollment", MaxImages)
	ErrNoImages      = errors.New("at least one image is required")
	ErrEmptySubject  = errors.New("subject cannot be empty")
)

var allowedExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Image is one enrollment photo as uploaded to the face service.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IsImageType reports whether a declared content type names an image.
// Bulk adds use this to skip unrelated files without failing.
func IsImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// Validate checks the image against the enrollment service limits.
// PRE: none
// POST: returns nil if the service would accept the file, the first violation otherwise
func (img Image) Validate() error {
	if !IsImageType(img.ContentType) {
		return ErrNotAnImage
	}
	if len(img.Data) == 0 {
		return ErrEmptyImage
	}
	if len(img.Data) > MaxImageSize {
		return ErrImageTooLarge
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(img.Filename))] {
		return ErrBadExtension
	}
	return nil
}

// ValidateBatch checks a subject and image batch before an upload.
// PRE: none
// POST: returns nil if every image is valid and the batch size is within limits
func ValidateBatch(subject string, images []Image) error {
	if strings.TrimSpace(subject) == "" {
		return ErrEmptySubject
	}
	if len(images) == 0 {
		return ErrNoImages
	}
	if len(images) > MaxImages {
		return ErrTooManyImages
	}
	for i, img := range images {
		if err := img.Validate(); err != nil {
			return fmt.Errorf("image %d (%s): %w", i, img.Filename, err)
		}
	}
	return nil
}

// FilenameFor returns name unchanged when it carries an extension, and
// otherwise appends one derived from the content type.
func FilenameFor(name, contentType string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	base := name
	if base == "" {
		base = "image"
	}
	if strings.EqualFold(contentType, "image/png") {
		return base + ".png"
	}
	return base + ".jpg"
}
