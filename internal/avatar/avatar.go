// Package avatar serves author avatars from Gravatar through a store-backed
// cache, falling back to a neutral silhouette.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphabot-ai/perch/internal/model"
	"github.com/alphabot-ai/perch/internal/store"
)

const (
	DefaultEndpoint = "https://gravatar.com"

	refreshAfterSuccess = 31 * 24 * time.Hour
	refreshAfterError   = 24 * time.Hour
	maxBytes            = math.MaxUint16
	userAgent           = "perch (avatar)"
)

var fallbackSVG = []byte(`<svg height="500" viewBox="0 0 500 500" width="500" xmlns="http://www.w3.org/2000/svg"><g fill="none" fill-rule="evenodd"><path d="m0 0h500v500h-500z" fill="#c4c4c4"/><g fill="#fbfbfb"><circle cx="250" cy="204.115842" r="113"/><ellipse cx="250" cy="509.115842" rx="187" ry="215"/></g></g></svg>`)

// Fallback is served when an author has no usable avatar.
var Fallback = Image{MIME: "image/svg+xml", Data: fallbackSVG}

var errUpstream = errors.New("avatar: upstream error")

type Image struct {
	MIME string
	Data []byte
}

type Store interface {
	store.AuthorStore
	store.AvatarStore
}

// Recorder counts where avatars were served from.
type Recorder interface {
	AvatarServed(source string)
}

type Service struct {
	store    Store
	client   *http.Client
	endpoint string
	pixels   int
	now      func() time.Time
	log      zerolog.Logger
	recorder Recorder
}

type Option func(*Service)

func WithEndpoint(endpoint string) Option {
	return func(s *Service) { s.endpoint = strings.TrimRight(endpoint, "/") }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func New(st Store, pixels int, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store: st,
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		endpoint: DefaultEndpoint,
		pixels:   pixels,
		now:      time.Now,
		log:      log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Image returns the avatar for authorID, refreshing the cache when it is
// stale. Unknown authors yield store.ErrNotFound.
func (s *Service) Image(ctx context.Context, authorID string) (Image, error) {
	cached, valid, err := s.cached(ctx, authorID)
	if err != nil {
		return Image{}, err
	}
	if valid {
		s.served("cache")
		return orFallback(cached), nil
	}

	author, err := s.store.GetAuthor(ctx, authorID)
	if err != nil {
		return Image{}, err
	}

	fresh := cached
	refresh := refreshAfterSuccess
	pulled, err := s.pull(ctx, author.EmailHash)
	if err != nil {
		s.log.Warn().Err(err).Str("author_id", authorID).Msg("avatar refresh failed, keeping cached copy")
		refresh = refreshAfterError
		s.served("stale")
	} else {
		fresh = pulled
		s.served("upstream")
	}

	if err := s.store.PutAvatar(ctx, model.Avatar{
		AuthorID:  authorID,
		MIME:      fresh.MIME,
		Data:      fresh.Data,
		Pixels:    s.pixels,
		RefreshAt: s.now().Add(refresh),
	}); err != nil {
		return Image{}, fmt.Errorf("store avatar: %w", err)
	}
	return orFallback(fresh), nil
}

// cached returns the stored avatar and whether it can be served as is. A
// cache entry for another pixel size is ignored entirely.
func (s *Service) cached(ctx context.Context, authorID string) (Image, bool, error) {
	a, err := s.store.GetAvatar(ctx, authorID)
	if errors.Is(err, store.ErrNotFound) {
		return Image{}, false, nil
	}
	if err != nil {
		return Image{}, false, err
	}
	if a.Pixels != s.pixels {
		return Image{}, false, nil
	}
	img := Image{MIME: a.MIME, Data: a.Data}
	if !s.now().Before(a.RefreshAt) {
		return img, false, nil
	}
	return img, true, nil
}

// pull fetches the Gravatar image. A missing Gravatar is not an error and
// yields an empty Image.
func (s *Service) pull(ctx context.Context, emailHash string) (Image, error) {
	target := fmt.Sprintf("%s/avatar/%s?s=%d&r=g&d=404", s.endpoint, strings.ToLower(emailHash), s.pixels)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Image{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Image{}, nil
	default:
		return Image{}, fmt.Errorf("%w: status %d", errUpstream, resp.StatusCode)
	}

	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		return Image{}, fmt.Errorf("%w: content type %q", errUpstream, mime)
	}
	size, err := strconv.Atoi(resp.Header.Get("Content-Length"))
	if err != nil || size <= 0 || size > maxBytes {
		return Image{}, fmt.Errorf("%w: content length %q", errUpstream, resp.Header.Get("Content-Length"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(size)+1))
	if err != nil {
		return Image{}, err
	}
	if len(data) != size {
		return Image{}, fmt.Errorf("%w: read %d bytes, expected %d", errUpstream, len(data), size)
	}
	return Image{MIME: mime, Data: data}, nil
}

func (s *Service) served(source string) {
	if s.recorder != nil {
		s.recorder.AvatarServed(source)
	}
}

func orFallback(img Image) Image {
	if len(img.Data) == 0 {
		return Fallback
	}
	return img
}
