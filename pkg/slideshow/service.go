// Package slideshow holds the folder cache and selection state machine
// behind the rotating photo-frame view.
//
// A Service owns exactly one committed FolderPayload at a time.
// Refreshes are serialized: automatic triggers coalesce onto a refresh
// already in flight, manual folder selection fails fast instead. A
// refresh that fails leaves the previous payload untouched, so readers
// always see the last committed state and never a torn one.
package slideshow

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/discovery"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/graph"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/match"
)

// Source is the remote storage surface the service depends on.
// *graph.Client satisfies this.
type Source interface {
	ListChildren(ctx context.Context, folderPath string) ([]graph.DriveItem, error)
	FetchContent(ctx context.Context, url string) ([]byte, string, error)
	Authenticate(ctx context.Context) error
	InvalidateToken()
}

// FolderSource produces the eligible folder set.
// *discovery.Walker satisfies this.
type FolderSource interface {
	Discover(ctx context.Context, root string, minPhotos int) ([]discovery.Folder, error)
}

// Config configures a Service.
type Config struct {
	// EntryID identifies this configured instance; it is baked into
	// every derived proxy URL.
	EntryID string

	// BaseFolderPath is the library-relative discovery root.
	BaseFolderPath string

	// MinPhotoCount is the eligibility threshold per folder.
	// Default: 5
	MinPhotoCount int

	// HistorySize caps the recent-folder exclusion list.
	// Zero disables exclusion. Default: 30
	HistorySize int

	// RotationPeriod is how long each photo stays displayed.
	// Default: 10s
	RotationPeriod time.Duration

	// Rand seeds selection; nil uses a time-seeded source.
	Rand *rand.Rand

	// Logger receives structured service logs. Default: no-op.
	Logger *zap.Logger
}

// flight tracks one in-progress refresh so later automatic triggers
// can join its result instead of issuing redundant work.
type flight struct {
	done    chan struct{}
	payload *FolderPayload
	err     error
}

// Service is the per-entry folder cache and selection state machine.
// Safe for concurrent use.
type Service struct {
	source  Source
	folders FolderSource
	matcher *match.ImageMatcher
	cfg     Config
	logger  *zap.Logger
	rng     *rand.Rand

	// mu guards payload, history and inflight as one unit: a history
	// update and its payload commit are only ever observed together.
	mu       sync.Mutex
	payload  *FolderPayload
	history  *History
	inflight *flight
	version  uint64
}

// New creates a slideshow service.
func New(source Source, folders FolderSource, matcher *match.ImageMatcher, cfg Config) *Service {
	if cfg.MinPhotoCount <= 0 {
		cfg.MinPhotoCount = 5
	}
	if cfg.RotationPeriod <= 0 {
		cfg.RotationPeriod = 10 * time.Second
	}
	if cfg.HistorySize < 0 {
		cfg.HistorySize = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Service{
		source:  source,
		folders: folders,
		matcher: matcher,
		cfg:     cfg,
		logger:  logger,
		rng:     rng,
		history: NewHistory(cfg.HistorySize),
	}
	return s
}

// EntryID returns the configured entry identifier.
func (s *Service) EntryID() string {
	return s.cfg.EntryID
}

// Current returns the last committed payload, or nil before the first
// successful refresh. It never blocks on an in-flight refresh.
func (s *Service) Current() *FolderPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload.clone()
}

// Folders runs a discovery pass and returns the eligible folder set.
func (s *Service) Folders(ctx context.Context) ([]discovery.Folder, error) {
	return s.folders.Discover(ctx, s.cfg.BaseFolderPath, s.cfg.MinPhotoCount)
}

// RefreshRandom selects a new random folder, avoiding recently shown
// ones, and commits its payload. Joins a refresh already in flight.
func (s *Service) RefreshRandom(ctx context.Context) (*FolderPayload, error) {
	return s.refresh(ctx, true, s.pickRandomFolder)
}

// RefreshCurrent rebuilds the payload for the currently selected
// folder without changing the selection, minting fresh item URLs.
// Falls back to random selection when nothing is selected yet. Joins a
// refresh already in flight.
func (s *Service) RefreshCurrent(ctx context.Context) (*FolderPayload, error) {
	return s.refresh(ctx, true, s.pickCurrentFolder)
}

// SelectFolder selects the named folder explicitly. Unlike automatic
// triggers it fails fast with ErrRefreshBusy when a refresh is in
// flight, so the caller gets a clear retry signal instead of silently
// receiving an unrelated folder.
func (s *Service) SelectFolder(ctx context.Context, path string) (*FolderPayload, error) {
	return s.refresh(ctx, false, func(ctx context.Context) (discovery.Folder, bool, error) {
		eligible, err := s.Folders(ctx)
		if err != nil {
			return discovery.Folder{}, false, err
		}
		f, err := pickSpecific(path, eligible)
		return f, true, err
	})
}

// RefreshToken forces re-authentication and then refreshes the current
// folder so cached item URLs are re-derived under the new token.
func (s *Service) RefreshToken(ctx context.Context) error {
	s.source.InvalidateToken()
	if err := s.source.Authenticate(ctx); err != nil {
		return err
	}
	_, err := s.RefreshCurrent(ctx)
	return err
}

// pickFn chooses the folder for a refresh. The second return reports
// whether the selection should be recorded in history.
type pickFn func(ctx context.Context) (discovery.Folder, bool, error)

func (s *Service) pickRandomFolder(ctx context.Context) (discovery.Folder, bool, error) {
	eligible, err := s.Folders(ctx)
	if err != nil {
		return discovery.Folder{}, false, err
	}

	s.mu.Lock()
	f, err := pickRandom(s.rng, eligible, s.history)
	s.mu.Unlock()
	if err != nil {
		return discovery.Folder{}, false, err
	}

	s.logger.Info("selected random folder",
		zap.String("path", f.Path),
		zap.Int("eligible", len(eligible)))
	return f, true, nil
}

func (s *Service) pickCurrentFolder(ctx context.Context) (discovery.Folder, bool, error) {
	s.mu.Lock()
	current := s.payload
	s.mu.Unlock()

	if current == nil {
		return s.pickRandomFolder(ctx)
	}
	// Re-fetching the already selected folder is not a new selection.
	return discovery.Folder{Path: current.FolderPath, Name: current.FolderName}, false, nil
}

// refresh serializes payload rebuilds. At most one executes at a time;
// coalescing callers wait for the in-flight result, others fail fast.
func (s *Service) refresh(ctx context.Context, coalesce bool, pick pickFn) (*FolderPayload, error) {
	s.mu.Lock()
	if f := s.inflight; f != nil {
		s.mu.Unlock()
		if !coalesce {
			return nil, ErrRefreshBusy
		}
		return f.await(ctx)
	}
	f := &flight{done: make(chan struct{})}
	s.inflight = f
	s.mu.Unlock()

	// The refresh runs to completion and commits even when the
	// initiator stops waiting; abandoning useful work would only
	// force the next trigger to redo it.
	go s.runRefresh(context.WithoutCancel(ctx), f, pick)

	return f.await(ctx)
}

// await blocks until the flight settles or the caller gives up
// waiting. Giving up does not cancel the refresh.
func (f *flight) await(ctx context.Context) (*FolderPayload, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.payload, f.err
	}
}

// runRefresh builds a payload and commits it together with the history
// update as one atomic pair. On failure the previous payload survives
// untouched.
func (s *Service) runRefresh(ctx context.Context, f *flight, pick pickFn) {
	payload, record, err := s.build(ctx, pick)

	s.mu.Lock()
	if err == nil {
		if record {
			s.history.Record(payload.FolderPath)
		}
		s.version++
		payload.Version = s.version
		payload.RecentFolders = s.history.Snapshot()
		s.payload = payload
		f.payload = payload.clone()
	} else {
		s.logger.Warn("refresh failed, keeping previous payload", zap.Error(err))
		f.err = err
	}
	s.inflight = nil
	s.mu.Unlock()

	close(f.done)
}

// build resolves the chosen folder's listing into a fresh payload.
func (s *Service) build(ctx context.Context, pick pickFn) (*FolderPayload, bool, error) {
	folder, record, err := pick(ctx)
	if err != nil {
		return nil, false, err
	}

	items, err := s.source.ListChildren(ctx, folder.Path)
	if err != nil {
		return nil, false, err
	}

	photos := buildPhotos(s.cfg.EntryID, items, s.matcher)
	s.logger.Debug("built folder payload",
		zap.String("path", folder.Path),
		zap.Int("photos", len(photos)))

	return &FolderPayload{
		FolderName:  folder.Name,
		FolderPath:  folder.Path,
		Photos:      photos,
		LastUpdated: time.Now().UTC(),
	}, record, nil
}

// Resolve fetches the bytes for the photo at index in the committed
// payload. It prefers the full-quality download URL and falls back to
// the thumbnail. When the stored URL has expired, the current folder
// is refreshed once to mint fresh URLs and the fetch retried.
// Read-only with respect to selection state.
func (s *Service) Resolve(ctx context.Context, index int) ([]byte, string, error) {
	photo, ok := s.photoAt(index)
	if !ok {
		return nil, "", ErrNotFound
	}

	url := photo.DownloadURL
	if url == "" {
		url = photo.ThumbnailURL
	}
	if url == "" {
		return nil, "", ErrNotFound
	}

	body, contentType, err := s.source.FetchContent(ctx, url)
	if err == nil {
		return body, contentType, nil
	}
	if !errors.Is(err, graph.ErrTokenExpired) {
		return nil, "", err
	}

	s.logger.Info("item url expired, refreshing current folder", zap.Int("index", index))
	if _, rerr := s.RefreshCurrent(ctx); rerr != nil {
		return nil, "", err
	}

	fresh, ok := s.findPhoto(photo.Name, index)
	if !ok {
		return nil, "", ErrNotFound
	}
	url = fresh.DownloadURL
	if url == "" {
		url = fresh.ThumbnailURL
	}
	if url == "" {
		return nil, "", ErrNotFound
	}
	return s.source.FetchContent(ctx, url)
}

// photoAt returns the committed photo at index.
func (s *Service) photoAt(index int) (Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload == nil || index < 0 || index >= len(s.payload.Photos) {
		return Photo{}, false
	}
	return s.payload.Photos[index], true
}

// findPhoto locates a photo after a refresh, matching by name first
// since a refresh may have reassigned indices.
func (s *Service) findPhoto(name string, index int) (Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload == nil {
		return Photo{}, false
	}
	for _, p := range s.payload.Photos {
		if p.Name == name {
			return p, true
		}
	}
	if index >= 0 && index < len(s.payload.Photos) {
		return s.payload.Photos[index], true
	}
	return Photo{}, false
}

// CurrentIndex projects the wall clock onto the committed photo
// sequence: now / rotation period, modulo the photo count. Pure
// read-only; never mutates cache state. Returns false with no payload
// or an empty folder.
func (s *Service) CurrentIndex(now time.Time) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload == nil || len(s.payload.Photos) == 0 {
		return 0, false
	}
	// Nanosecond arithmetic keeps sub-second periods well-defined.
	cycle := now.UnixNano() / int64(s.cfg.RotationPeriod)
	return int(cycle % int64(len(s.payload.Photos))), true
}
