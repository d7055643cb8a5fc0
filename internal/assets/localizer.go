package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/fetch"
	"github.com/inkfeed/inkfeed/internal/ports"
)

const maxImageBytes = 10 << 20

var extByType = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/bmp":     ".bmp",
}

type localized struct {
	path string
	hash string
}

// Localizer downloads the images referenced by an item and rewrites the
// references to point at files in the local store. Concurrent requests for
// the same URL are coalesced, and each URL is fetched at most once per run,
// whether it succeeded or failed.
type Localizer struct {
	store  ports.AssetStore
	client *http.Client
	policy fetch.Policy
	logger *slog.Logger

	group singleflight.Group

	mu   sync.Mutex
	done map[string]localized
	fail map[string]error
}

var _ ports.Localizer = (*Localizer)(nil)

func NewLocalizer(store ports.AssetStore, client *http.Client, policy fetch.Policy, logger *slog.Logger) *Localizer {
	if client == nil {
		client = &http.Client{}
	}
	return &Localizer{
		store:  store,
		client: client,
		policy: policy,
		logger: logger,
		done:   make(map[string]localized),
		fail:   make(map[string]error),
	}
}

// Localize resolves every image reference on the item. References that fail
// to download are dropped; the item keeps the rest. An error is returned
// only when the item had images and none of them could be localized.
func (l *Localizer) Localize(ctx context.Context, item *domain.Item) error {
	if len(item.Images) == 0 {
		return nil
	}

	var kept []domain.ImageRef
	var lastErr error
	for _, ref := range item.Images {
		loc, err := l.localizeURL(ctx, ref.URL)
		if err != nil {
			lastErr = err
			l.debug("image failed", "item", item.ID, "url", ref.URL, "error", err)
			continue
		}
		ref.LocalPath = loc.path
		ref.Hash = loc.hash
		kept = append(kept, ref)
	}
	item.Images = kept

	if len(kept) == 0 && lastErr != nil {
		return &domain.AssetError{ItemID: item.ID, Err: lastErr}
	}
	return nil
}

func (l *Localizer) localizeURL(ctx context.Context, rawURL string) (localized, error) {
	if cached, err, ok := l.lookup(rawURL); ok {
		return cached, err
	}

	v, err, _ := l.group.Do(rawURL, func() (any, error) {
		if cached, err, ok := l.lookup(rawURL); ok {
			return cached, err
		}
		loc, err := l.download(ctx, rawURL)
		l.record(rawURL, loc, err)
		return loc, err
	})
	if err != nil {
		return localized{}, err
	}
	return v.(localized), nil
}

func (l *Localizer) lookup(rawURL string) (localized, error, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if loc, ok := l.done[rawURL]; ok {
		return loc, nil, true
	}
	if err, ok := l.fail[rawURL]; ok {
		return localized{}, err, true
	}
	return localized{}, nil, false
}

func (l *Localizer) record(rawURL string, loc localized, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.fail[rawURL] = err
		return
	}
	l.done[rawURL] = loc
}

func (l *Localizer) download(ctx context.Context, rawURL string) (localized, error) {
	var data []byte
	var contentType string

	err := fetch.Do(ctx, l.policy, l.logger, "download "+rawURL, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "inkfeed/1.0")

		resp, err := l.client.Do(req)
		if err != nil {
			return domain.Transient(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status %s", resp.Status)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return domain.Transient(err)
			}
			return err
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
		if err != nil {
			return domain.Transient(fmt.Errorf("read body: %w", err))
		}
		data = body
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		return localized{}, err
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if rel, ok := l.store.Exists(hash); ok {
		return localized{path: rel, hash: hash}, nil
	}

	rel, err := l.store.Write(hash, extension(contentType, rawURL), data)
	if err != nil {
		return localized{}, err
	}
	return localized{path: rel, hash: hash}, nil
}

// extension picks a file extension from the response content type, falling
// back to the URL path and finally ".bin".
func extension(contentType, rawURL string) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			if ext, ok := extByType[mt]; ok {
				return ext
			}
		}
	}
	if ext := strings.ToLower(path.Ext(stripQuery(rawURL))); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".bin"
}

func stripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

func (l *Localizer) debug(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}
