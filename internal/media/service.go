package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	MaxImageBytes = 5 << 20
	urlLifetime   = 7 * 24 * time.Hour
)

var (
	ErrTooLarge        = errors.New("image must be 5 MiB or smaller")
	ErrUnsupportedType = errors.New("image must be a JPEG, PNG or WebP file")
	ErrEmpty           = errors.New("image is empty")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Upload struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Service struct {
	store ObjectStore
	now   func() time.Time
}

func NewService(store ObjectStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Upload stores one listing image for ownerID and returns a shareable URL.
// The content type is sniffed from the bytes; the client's claim is ignored.
func (s *Service) Upload(ctx context.Context, ownerID string, size int64, r io.Reader) (Upload, error) {
	if size <= 0 {
		return Upload{}, ErrEmpty
	}
	if size > MaxImageBytes {
		return Upload{}, ErrTooLarge
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Upload{}, fmt.Errorf("media: read image: %w", err)
	}
	contentType := http.DetectContentType(head)
	ext, ok := extensions[contentType]
	if !ok {
		return Upload{}, ErrUnsupportedType
	}

	key := fmt.Sprintf("listings/%s/%s%s", ownerID, uuid.NewString(), ext)
	if err := s.store.Put(ctx, key, io.LimitReader(br, size), size, contentType); err != nil {
		return Upload{}, err
	}
	url, err := s.store.PresignGet(ctx, key, urlLifetime)
	if err != nil {
		return Upload{}, err
	}
	return Upload{
		Key:         key,
		URL:         url,
		ContentType: contentType,
		Size:        size,
		ExpiresAt:   s.now().Add(urlLifetime).UTC(),
	}, nil
}
