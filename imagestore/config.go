package imagestore

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// Extension is the format every stored image is normalized to.
	Extension = ".png"

	DefaultMaxWidth       = 480
	DefaultMaxHeight      = 480
	DefaultMaxUploadBytes = 8 << 20
	DefaultMaxPixels      = 40_000_000
	DefaultBlurSigma      = 0.5
	DefaultAssetName      = "default"
)

var folderPattern = regexp.MustCompile(`^[a-z0-9_\-]+$`)

// Config describes where a store keeps its images and how uploads are
// normalized.
type Config struct {
	// Root is the base directory on the filesystem.
	Root string
	// Folder groups the images of one entity type, e.g. "products".
	Folder string
	// URLPrefix is prepended to "/{folder}/{identifier}.png" in URLs.
	URLPrefix string

	MaxWidth  int
	MaxHeight int
	// MaxUploadBytes bounds how much of an upload is read.
	MaxUploadBytes int64
	// MaxPixels bounds the decoded width*height.
	MaxPixels int
	// BlurSigma is the Gaussian blur applied after scaling. Zero disables it.
	BlurSigma float64
}

// DefaultConfig returns the configuration of a store for folder.
func DefaultConfig(folder string) Config {
	return Config{
		Root:           "images",
		Folder:         folder,
		URLPrefix:      "/images",
		MaxWidth:       DefaultMaxWidth,
		MaxHeight:      DefaultMaxHeight,
		MaxUploadBytes: DefaultMaxUploadBytes,
		MaxPixels:      DefaultMaxPixels,
		BlurSigma:      DefaultBlurSigma,
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Folder, validation.Required, validation.Match(folderPattern)),
		validation.Field(&c.MaxWidth, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxHeight, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxPixels, validation.Required, validation.Min(1)),
		validation.Field(&c.BlurSigma, validation.Min(0.0)),
	)
}
