package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/rx-reader/internal/utils"
	"github.com/menta2k/rx-reader/pkg/types"
)

var (
	// ErrUnsupportedFormat is returned for files outside the configured type filter
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrImageTooSmall is returned for images below the minimum side length
	ErrImageTooSmall = errors.New("image too small")
	// ErrImageTooLarge is returned for images over the configured byte limit
	ErrImageTooLarge = errors.New("image too large")
	// ErrInvalidImage is returned for data that claims to be an image but does not decode
	ErrInvalidImage = errors.New("invalid image")
)

// Config holds configuration for image ingestion
type Config struct {
	SupportedFormats []string
	// MaxDimension downsizes images whose long side exceeds it; 0 keeps the original bytes
	MaxDimension int
	JPEGQuality  int
	MinImageSize int
	MaxBytes     int64
}

// DefaultConfig accepts JPEG prescriptions only, like the upload form
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpg", "jpeg"},
		MaxDimension:     2048,
		JPEGQuality:      90,
		MinImageSize:     100,
		MaxBytes:         20 << 20,
	}
}

// Processor turns files, URLs and uploads into model-ready images
type Processor struct {
	config     Config
	httpClient *http.Client
}

// NewProcessor creates a new processor with default configuration
func NewProcessor() *Processor {
	return NewProcessorWithConfig(DefaultConfig())
}

// NewProcessorWithConfig creates a new processor with custom configuration
func NewProcessorWithConfig(cfg Config) *Processor {
	if len(cfg.SupportedFormats) == 0 {
		cfg.SupportedFormats = DefaultConfig().SupportedFormats
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig().MaxBytes
	}
	return &Processor{
		config:     cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Config returns the processor configuration
func (p *Processor) Config() Config {
	return p.config
}

// Accepts reports whether the file name passes the type filter
func (p *Processor) Accepts(filename string) bool {
	return utils.IsImageFile(filename, p.config.SupportedFormats...)
}

// LoadSmart loads an image from either a file path or URL
func (p *Processor) LoadSmart(ctx context.Context, source string) (types.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadURL(ctx, source)
	}
	return p.LoadFile(source)
}

// LoadFile reads an image from disk
func (p *Processor) LoadFile(path string) (types.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Image{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	data, err := p.readAll(f)
	if err != nil {
		return types.Image{}, err
	}
	return p.FromBytes(data, filepath.Base(path))
}

// LoadURL downloads an image
func (p *Processor) LoadURL(ctx context.Context, imageURL string) (types.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return types.Image{}, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return types.Image{}, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return types.Image{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "rx-reader/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Image{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Image{}, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return types.Image{}, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := p.readAll(resp.Body)
	if err != nil {
		return types.Image{}, err
	}

	name := filepath.Base(parsedURL.Path)
	if !p.Accepts(name) {
		// Trust the server's content type when the path has no usable extension
		name = "download." + extensionForMIME(contentType)
	}
	img, err := p.FromBytes(data, name)
	if err != nil {
		return types.Image{}, err
	}
	img.Source = imageURL
	return img, nil
}

// FromBytes applies the type filter, validates the image and, if configured,
// downsizes it. Images that need no resizing keep their original bytes.
func (p *Processor) FromBytes(data []byte, filename string) (types.Image, error) {
	if !p.Accepts(filename) {
		return types.Image{}, fmt.Errorf("%w: %s (accepted: %s)", ErrUnsupportedFormat,
			filename, strings.Join(p.config.SupportedFormats, ", "))
	}
	if int64(len(data)) > p.config.MaxBytes {
		return types.Image{}, fmt.Errorf("%w: %s, limit is %s", ErrImageTooLarge,
			utils.FormatFileSize(int64(len(data))), utils.FormatFileSize(p.config.MaxBytes))
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return types.Image{}, fmt.Errorf("%w: %s content is %s", ErrUnsupportedFormat, filename, mime)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return types.Image{}, fmt.Errorf("%w: failed to decode %s: %v", ErrInvalidImage, filename, err)
	}
	if cfg.Width < p.config.MinImageSize || cfg.Height < p.config.MinImageSize {
		return types.Image{}, fmt.Errorf("%w: %dx%d (minimum: %d)", ErrImageTooSmall,
			cfg.Width, cfg.Height, p.config.MinImageSize)
	}

	img := types.Image{
		Data:     data,
		MIMEType: mime,
		Source:   filename,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}

	maxDim := p.config.MaxDimension
	if maxDim <= 0 || (cfg.Width <= maxDim && cfg.Height <= maxDim) {
		return img, nil
	}

	resized, err := p.resize(data, maxDim)
	if err != nil {
		return types.Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	b := resized.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: p.config.JPEGQuality}); err != nil {
		return types.Image{}, fmt.Errorf("failed to encode image: %w", err)
	}
	img.Data = buf.Bytes()
	img.MIMEType = "image/jpeg"
	img.Width, img.Height = b.Dx(), b.Dy()
	return img, nil
}

// resize decodes the image, honouring EXIF orientation, and fits its long side to maxDim
func (p *Processor) resize(data []byte, maxDim int) (image.Image, error) {
	decoded, err := p.decode(data)
	if err != nil {
		return nil, err
	}
	b := decoded.Bounds()
	if b.Dx() >= b.Dy() {
		return imaging.Resize(decoded, maxDim, 0, imaging.Lanczos), nil
	}
	return imaging.Resize(decoded, 0, maxDim, imaging.Lanczos), nil
}

// decode tries the registered decoders first, then an explicit WebP decode
func (p *Processor) decode(data []byte) (image.Image, error) {
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

func (p *Processor) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

func extensionForMIME(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/png"):
		return "png"
	case strings.HasPrefix(mime, "image/webp"):
		return "webp"
	default:
		return "jpg"
	}
}
