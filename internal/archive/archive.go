// Package archive keeps zstd compressed copies of raw upstream responses.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

const (
	fileTimeFormat = "20060102T150405Z"
	fileExt        = ".json.zst"
)

// Dir archives responses below a root directory, one sub directory per fuel type.
type Dir struct {
	root    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New creates the root directory if needed and returns an archive.
func New(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Dir{root: root, encoder: encoder, decoder: decoder}, nil
}

// Path returns the file a response fetched at fetchedAt is archived to.
func (d *Dir) Path(fuelType models.FuelType, fetchedAt time.Time) string {
	return filepath.Join(d.root, string(fuelType), fetchedAt.UTC().Format(fileTimeFormat)+fileExt)
}

// Save compresses body and writes it atomically. It returns the written path.
func (d *Dir) Save(fuelType models.FuelType, fetchedAt time.Time, body []byte) (string, error) {
	path := d.Path(fuelType, fetchedAt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}

	data := d.encoder.EncodeAll(body, make([]byte, 0, len(body)/2))

	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return "", fmt.Errorf("creating archive file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return "", fmt.Errorf("writing archive file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return "", fmt.Errorf("syncing archive file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpFile)
		return "", fmt.Errorf("closing archive file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return "", fmt.Errorf("renaming archive file: %w", err)
	}
	return path, nil
}

// Load returns the decompressed content of an archived response.
func (d *Dir) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive file: %w", err)
	}
	body, err := d.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing archive file %s: %w", path, err)
	}
	return body, nil
}

// List returns the archived files of a fuel type, oldest first.
func (d *Dir) List(fuelType models.FuelType) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.root, string(fuelType), "*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("listing archive: %w", err)
	}
	// Glob sorts lexically, which is chronological for fileTimeFormat.
	return matches, nil
}

// Close releases the encoder and decoder.
func (d *Dir) Close() error {
	d.decoder.Close()
	return d.encoder.Close()
}
