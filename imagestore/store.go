package imagestore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/goliatone/go-storefront/internal/logger"
)

// ErrImageNotFound is returned when a requested image is not on disk.
var ErrImageNotFound = errors.New("imagestore: image not found")

// Assets is the part of a store the domain services depend on.
type Assets[K Key] interface {
	SetImage(key K, r io.Reader) (bool, error)
	ValidateImage(r io.Reader) bool
	DeleteImage(key K) error
	ImageURL(key K) string
	ImageOrDefaultURL(key K) (string, error)
}

// Store keeps one normalized PNG per key under {root}/{folder}.
type Store[K Key] struct {
	fs  afero.Fs
	cfg Config
	log *logger.Logger

	defaultMu sync.Mutex
}

var _ Assets[ProductImageKey] = (*Store[ProductImageKey])(nil)

type Option func(*storeOptions)

type storeOptions struct {
	log *logger.Logger
}

func WithLogger(l *logger.Logger) Option {
	return func(o *storeOptions) { o.log = l }
}

// New validates cfg and returns a store on fs.
func New[K Key](fs afero.Fs, cfg Config, opts ...Option) (*Store[K], error) {
	if fs == nil {
		return nil, errors.New("imagestore: filesystem is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("imagestore: invalid config: %w", err)
	}

	o := storeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}

	return &Store[K]{
		fs:  fs,
		cfg: cfg,
		log: o.log.With("folder", cfg.Folder),
	}, nil
}

func (s *Store[K]) Config() Config {
	return s.cfg
}

func (s *Store[K]) dir() string {
	return filepath.Join(s.cfg.Root, s.cfg.Folder)
}

func (s *Store[K]) filePath(name string) string {
	return filepath.Join(s.dir(), name+Extension)
}

func (s *Store[K]) url(name string) string {
	prefix := strings.TrimRight(s.cfg.URLPrefix, "/")
	return prefix + path.Join("/", s.cfg.Folder, name+Extension)
}

func identifier[K Key](key K) (string, error) {
	id := key.Identifier()
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("imagestore: invalid identifier %q", id)
	}
	return id, nil
}

// ImageURL derives the URL of key's image without touching the filesystem.
func (s *Store[K]) ImageURL(key K) string {
	return s.url(key.Identifier())
}

func (s *Store[K]) DefaultImageURL() string {
	return s.url(DefaultAssetName)
}

// ImageOrDefaultURL returns the URL of key's image when it exists, the
// default asset's URL otherwise. The default asset is generated if needed.
func (s *Store[K]) ImageOrDefaultURL(key K) (string, error) {
	ok, err := s.ImageExists(key)
	if err != nil {
		return "", err
	}
	if ok {
		return s.ImageURL(key), nil
	}
	if err := s.ensureDefault(); err != nil {
		return "", err
	}
	return s.DefaultImageURL(), nil
}

func (s *Store[K]) ImageExists(key K) (bool, error) {
	id, err := identifier(key)
	if err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, s.filePath(id))
	if err != nil {
		return false, fmt.Errorf("imagestore: stat %s: %w", id, err)
	}
	return ok, nil
}

func (s *Store[K]) ImageData(key K) ([]byte, error) {
	id, err := identifier(key)
	if err != nil {
		return nil, err
	}
	return s.read(id)
}

// OpenImage opens key's image for streaming. The caller closes it.
func (s *Store[K]) OpenImage(key K) (io.ReadCloser, error) {
	id, err := identifier(key)
	if err != nil {
		return nil, err
	}
	return s.open(id)
}

func (s *Store[K]) DefaultImageData() ([]byte, error) {
	if err := s.ensureDefault(); err != nil {
		return nil, err
	}
	return s.read(DefaultAssetName)
}

func (s *Store[K]) OpenDefaultImage() (io.ReadCloser, error) {
	if err := s.ensureDefault(); err != nil {
		return nil, err
	}
	return s.open(DefaultAssetName)
}

func (s *Store[K]) read(name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.filePath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("imagestore: read %s: %w", name, err)
	}
	return data, nil
}

func (s *Store[K]) open(name string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.filePath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("imagestore: open %s: %w", name, err)
	}
	return f, nil
}

// SetImage normalizes the upload in r and stores it as key's image,
// replacing any previous one. Content that is too large or not a decodable
// image returns (false, nil) and leaves the store untouched; I/O failures
// return an error.
func (s *Store[K]) SetImage(key K, r io.Reader) (bool, error) {
	id, err := identifier(key)
	if err != nil {
		return false, err
	}

	data, err := readBounded(r, s.cfg.MaxUploadBytes)
	if errors.Is(err, errRejected) {
		s.log.Debug("image upload rejected", "key", id, "reason", err)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("imagestore: %w", err)
	}

	out, err := process(data, s.cfg)
	if errors.Is(err, errRejected) {
		s.log.Debug("image upload rejected", "key", id, "reason", err)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("imagestore: %w", err)
	}

	if err := s.write(id, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store[K]) SetImageBytes(key K, data []byte) (bool, error) {
	return s.SetImage(key, bytes.NewReader(data))
}

// ValidateImage reports whether r holds an image SetImage would accept.
func (s *Store[K]) ValidateImage(r io.Reader) bool {
	data, err := readBounded(r, s.cfg.MaxUploadBytes)
	if err != nil {
		return false
	}
	_, err = decode(data, s.cfg.MaxPixels)
	return err == nil
}

func (s *Store[K]) ValidateImageBytes(data []byte) bool {
	return s.ValidateImage(bytes.NewReader(data))
}

// DeleteImage removes key's image. A missing file or folder is not an error;
// a missing folder is created.
func (s *Store[K]) DeleteImage(key K) error {
	id, err := identifier(key)
	if err != nil {
		return err
	}

	ok, err := afero.DirExists(s.fs, s.dir())
	if err != nil {
		return fmt.Errorf("imagestore: stat folder: %w", err)
	}
	if !ok {
		if err := s.fs.MkdirAll(s.dir(), 0o755); err != nil {
			return fmt.Errorf("imagestore: create folder: %w", err)
		}
		return nil
	}

	if err := s.fs.Remove(s.filePath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("imagestore: delete %s: %w", id, err)
	}
	return nil
}

// write replaces name atomically through a temp file in the same folder.
func (s *Store[K]) write(name string, data []byte) error {
	if err := s.fs.MkdirAll(s.dir(), 0o755); err != nil {
		return fmt.Errorf("imagestore: create folder: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir(), "."+name+"-*")
	if err != nil {
		return fmt.Errorf("imagestore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = s.fs.Rename(tmpName, s.filePath(name))
	}
	if werr != nil {
		if err := s.fs.Remove(tmpName); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("failed to remove temp image", "path", tmpName, "error", err)
		}
		return fmt.Errorf("imagestore: write %s: %w", name, werr)
	}
	return nil
}

func (s *Store[K]) ensureDefault() error {
	s.defaultMu.Lock()
	defer s.defaultMu.Unlock()

	ok, err := afero.Exists(s.fs, s.filePath(DefaultAssetName))
	if err != nil {
		return fmt.Errorf("imagestore: stat default: %w", err)
	}
	if ok {
		return nil
	}

	data, err := placeholder(s.cfg.MaxWidth, s.cfg.MaxHeight)
	if err != nil {
		return err
	}
	if err := s.write(DefaultAssetName, data); err != nil {
		return err
	}
	s.log.Info("generated default image", "path", s.filePath(DefaultAssetName))
	return nil
}
