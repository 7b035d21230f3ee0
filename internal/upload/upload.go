package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/google/uuid"
)

const DefaultMaxBytes int64 = 1 << 20 // 1 MiB

// Rejections are client errors and reach the envelope as 400s.
var (
	ErrUnsupportedType = apperr.BadRequest("Only .png, .jpg and .jpeg format allowed!")
	ErrTooLarge        = apperr.BadRequest("File too large")
	ErrMissing         = apperr.BadRequest("profileImage is required")
)

var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
}

// File is an upload that already passed the type and size checks.
type File struct {
	OriginalName string
	ContentType  string
	Size         int64
	Reader       io.ReadSeeker
}

// Storage keeps profile images. Store returns the name later passed to Remove
// and URL.
type Storage interface {
	Store(ctx context.Context, f File) (string, error)
	Remove(ctx context.Context, name string) error
	URL(name string) string
}

// FromMultipart opens fh and sniffs its content. The declared content type is
// ignored; only the bytes decide.
func FromMultipart(fh *multipart.FileHeader, maxBytes int64) (File, io.Closer, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	if fh.Size > maxBytes {
		return File{}, nil, ErrTooLarge
	}

	f, err := fh.Open()

	if err != nil {
		return File{}, nil, fmt.Errorf("open upload: %w", err)
	}

	file, err := Inspect(f, fh.Filename, fh.Size)

	if err != nil {
		_ = f.Close()
		return File{}, nil, err
	}

	return file, f, nil
}

// Inspect sniffs r and rewinds it.
func Inspect(r io.ReadSeeker, name string, size int64) (File, error) {
	mt, err := mimetype.DetectReader(r)

	if err != nil {
		return File{}, fmt.Errorf("detect content type: %w", err)
	}

	_, err = r.Seek(0, io.SeekStart)

	if err != nil {
		return File{}, fmt.Errorf("rewind upload: %w", err)
	}

	contentType := mt.String()
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}

	if _, ok := allowedTypes[contentType]; !ok {
		return File{}, ErrUnsupportedType
	}

	return File{
		OriginalName: name,
		ContentType:  contentType,
		Size:         size,
		Reader:       r,
	}, nil
}

// objectName is "<uuid><ext>". The extension follows the sniffed content type;
// the client's extension survives only when it names that same type.
func objectName(f File) string {
	ext := allowedTypes[f.ContentType]

	if client := strings.ToLower(filepath.Ext(f.OriginalName)); client == ".jpeg" && ext == ".jpg" {
		ext = client
	}

	return uuid.NewString() + ext
}

func joinURL(base, prefix, name string) string {
	out := strings.TrimRight(base, "/")

	if p := strings.Trim(prefix, "/"); p != "" {
		out += "/" + p
	}

	return out + "/" + url.PathEscape(name)
}

// safeName rejects anything that is not a bare file name.
func safeName(name string) bool {
	return name != "" && name == filepath.Base(name) && name != "." && name != ".."
}
