package slideshow

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/discovery"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/graph"
)

type fetchResult struct {
	body        []byte
	contentType string
	err         error
}

// fakeSource implements Source for testing.
type fakeSource struct {
	mu          sync.Mutex
	listings    map[string][]graph.DriveItem
	listErr     error
	listCalls   int
	content     map[string]fetchResult
	fetchCalls  []string
	authCalls   int
	invalidated int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		listings: make(map[string][]graph.DriveItem),
		content:  make(map[string]fetchResult),
	}
}

func (f *fakeSource) ListChildren(ctx context.Context, folderPath string) ([]graph.DriveItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings[folderPath], nil
}

func (f *fakeSource) FetchContent(ctx context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls = append(f.fetchCalls, url)
	res, ok := f.content[url]
	if !ok {
		return nil, "", graph.ErrNotFound
	}
	return res.body, res.contentType, res.err
}

func (f *fakeSource) Authenticate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	return nil
}

func (f *fakeSource) InvalidateToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

func (f *fakeSource) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeSource) setListing(path string, items []graph.DriveItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings[path] = items
}

func (f *fakeSource) calls() (list int, fetch []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, append([]string(nil), f.fetchCalls...)
}

// fakeFolders implements FolderSource for testing. When entered and
// release are set, Discover signals entry and blocks until released,
// which lets tests hold a refresh in flight.
type fakeFolders struct {
	mu      sync.Mutex
	folders []discovery.Folder
	err     error
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (f *fakeFolders) Discover(ctx context.Context, root string, minPhotos int) ([]discovery.Folder, error) {
	f.mu.Lock()
	f.calls++
	entered, release := f.entered, f.release
	out, err := f.folders, f.err
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeFolders) discoverCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(t *testing.T, source Source, folders FolderSource, cfg Config) *Service {
	t.Helper()
	if cfg.EntryID == "" {
		cfg.EntryID = "entry1"
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(42))
	}
	return New(source, folders, testMatcher(t), cfg)
}

func TestRefreshRandomCommitsPayload(t *testing.T) {
	source := newFakeSource()
	source.setListing("/Photos/Holiday", []graph.DriveItem{file("b.jpg"), file("a.jpg")})
	ff := &fakeFolders{folders: folders("/Photos/Holiday")}

	svc := newTestService(t, source, ff, Config{})

	require.Nil(t, svc.Current())

	payload, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/Photos/Holiday", payload.FolderPath)
	require.Equal(t, 2, payload.PhotoCount())
	assert.Equal(t, "a.jpg", payload.Photos[0].Name)
	assert.Equal(t, "b.jpg", payload.Photos[1].Name)
	assert.Equal(t, []string{"/Photos/Holiday"}, payload.RecentFolders)
	assert.False(t, payload.LastUpdated.IsZero())

	current := svc.Current()
	require.NotNil(t, current)
	assert.Equal(t, payload.FolderPath, current.FolderPath)
	assert.Equal(t, payload.PhotoCount(), current.PhotoCount())
}

func TestRefreshRandomAvoidsRecentFolder(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg")})
	source.setListing("/b", []graph.DriveItem{file("b.jpg")})
	ff := &fakeFolders{folders: folders("/a", "/b")}

	svc := newTestService(t, source, ff, Config{HistorySize: 30})

	first, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)
	second, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.FolderPath, second.FolderPath)
	assert.Equal(t, []string{second.FolderPath, first.FolderPath}, second.RecentFolders)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, uint64(2), second.Version)
}

func TestRefreshFailureKeepsPreviousPayload(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg")})
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{})

	first, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	source.setListErr(graph.ErrUnavailable)
	_, err = svc.RefreshRandom(context.Background())
	require.ErrorIs(t, err, graph.ErrUnavailable)

	current := svc.Current()
	require.NotNil(t, current)
	assert.Equal(t, first.FolderPath, current.FolderPath)
	assert.Equal(t, first.LastUpdated, current.LastUpdated)
	assert.Equal(t, first.PhotoCount(), current.PhotoCount())
}

func TestRefreshNoEligibleFolders(t *testing.T) {
	svc := newTestService(t, newFakeSource(), &fakeFolders{}, Config{})

	_, err := svc.RefreshRandom(context.Background())
	assert.ErrorIs(t, err, ErrNoEligibleFolder)
	assert.Nil(t, svc.Current())
}

func TestSelectFolder(t *testing.T) {
	source := newFakeSource()
	source.setListing("/b", []graph.DriveItem{file("b.jpg")})
	ff := &fakeFolders{folders: folders("/a", "/b")}

	svc := newTestService(t, source, ff, Config{HistorySize: 30})

	payload, err := svc.SelectFolder(context.Background(), "/b")
	require.NoError(t, err)
	assert.Equal(t, "/b", payload.FolderPath)
	assert.Equal(t, []string{"/b"}, payload.RecentFolders)

	_, err = svc.SelectFolder(context.Background(), "/missing")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestSelectFolderBusyDuringRefresh(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg")})
	ff := &fakeFolders{
		folders: folders("/a"),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	svc := newTestService(t, source, ff, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.RefreshRandom(context.Background())
		done <- err
	}()

	<-ff.entered

	_, err := svc.SelectFolder(context.Background(), "/a")
	assert.ErrorIs(t, err, ErrRefreshBusy)

	close(ff.release)
	require.NoError(t, <-done)

	// The collided refresh has settled; selection works again.
	ff.mu.Lock()
	ff.entered, ff.release = nil, nil
	ff.mu.Unlock()
	_, err = svc.SelectFolder(context.Background(), "/a")
	assert.NoError(t, err)
}

func TestRefreshCoalescesConcurrentTriggers(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg")})
	ff := &fakeFolders{
		folders: folders("/a"),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	svc := newTestService(t, source, ff, Config{})

	results := make(chan error, 2)
	go func() {
		_, err := svc.RefreshRandom(context.Background())
		results <- err
	}()
	<-ff.entered

	go func() {
		_, err := svc.RefreshCurrent(context.Background())
		results <- err
	}()
	// Give the second trigger time to join the in-flight refresh.
	time.Sleep(50 * time.Millisecond)

	close(ff.release)
	require.NoError(t, <-results)
	require.NoError(t, <-results)

	assert.Equal(t, 1, ff.discoverCalls())
}

func TestRefreshRunsToCompletionWhenCallerGivesUp(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg")})
	ff := &fakeFolders{
		folders: folders("/a"),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	svc := newTestService(t, source, ff, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.RefreshRandom(ctx)
		done <- err
	}()
	<-ff.entered

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(ff.release)

	// The abandoned refresh still commits.
	require.Eventually(t, func() bool {
		return svc.Current() != nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "/a", svc.Current().FolderPath)
}

func TestRefreshCurrentKeepsSelectionAndHistory(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg")})
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{HistorySize: 30})

	first, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	second, err := svc.RefreshCurrent(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.FolderPath, second.FolderPath)
	assert.Equal(t, []string{"/a"}, second.RecentFolders, "re-fetch must not be recorded as a new selection")
}

func TestRefreshCurrentFallsBackToRandomWhenEmpty(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg")})
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{HistorySize: 30})

	payload, err := svc.RefreshCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/a", payload.FolderPath)
	assert.Equal(t, []string{"/a"}, payload.RecentFolders)
}

func TestRefreshTokenReauthenticates(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg")})
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{})

	require.NoError(t, svc.RefreshToken(context.Background()))

	assert.Equal(t, 1, source.invalidated)
	assert.Equal(t, 1, source.authCalls)
	assert.NotNil(t, svc.Current())
}

func TestResolve(t *testing.T) {
	item := file("a.jpg")
	item.DownloadURL = "https://download.example/a.jpg"

	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{item})
	source.content["https://download.example/a.jpg"] = fetchResult{
		body:        []byte("jpeg-bytes"),
		contentType: "image/jpeg",
	}
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{})
	_, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	body, contentType, err := svc.Resolve(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), body)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestResolveOutOfRange(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg")})
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{})

	// No payload yet.
	_, _, err := svc.Resolve(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	_, _, err = svc.Resolve(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = svc.Resolve(context.Background(), -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolvePrefersDownloadOverThumbnail(t *testing.T) {
	item := file("a.jpg")
	item.DownloadURL = "https://download.example/a.jpg"
	item.Thumbnails = []graph.ThumbnailSet{{Large: &graph.Thumbnail{URL: "https://thumb.example/a.jpg"}}}

	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{item})
	source.content["https://download.example/a.jpg"] = fetchResult{body: []byte("full")}
	source.content["https://thumb.example/a.jpg"] = fetchResult{body: []byte("thumb")}
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{})
	_, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	body, _, err := svc.Resolve(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("full"), body)
}

func TestResolveRetriesAfterExpiredURL(t *testing.T) {
	stale := file("a.jpg")
	stale.DownloadURL = "https://download.example/stale"

	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{stale})
	source.content["https://download.example/stale"] = fetchResult{err: graph.ErrTokenExpired}
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{})
	_, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	// The remote listing now carries a fresh URL for the same photo.
	fresh := file("a.jpg")
	fresh.DownloadURL = "https://download.example/fresh"
	source.setListing("/a", []graph.DriveItem{fresh})
	source.mu.Lock()
	source.content["https://download.example/fresh"] = fetchResult{body: []byte("fresh-bytes"), contentType: "image/jpeg"}
	source.mu.Unlock()

	body, _, err := svc.Resolve(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh-bytes"), body)

	_, fetches := source.calls()
	assert.Equal(t, []string{"https://download.example/stale", "https://download.example/fresh"}, fetches)
}

func TestResolveSurfacesFetchErrors(t *testing.T) {
	item := file("a.jpg")
	item.DownloadURL = "https://download.example/a.jpg"

	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{item})
	source.content["https://download.example/a.jpg"] = fetchResult{err: graph.ErrUnavailable}
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{})
	_, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	_, _, err = svc.Resolve(context.Background(), 0)
	assert.ErrorIs(t, err, graph.ErrUnavailable)
}

func TestCurrentIndexProjectsWallClock(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg"), file("b.jpg"), file("c.jpg")})
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{RotationPeriod: 10 * time.Second})

	_, ok := svc.CurrentIndex(time.Unix(35, 0))
	assert.False(t, ok, "no payload committed yet")

	_, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	idx, ok := svc.CurrentIndex(time.Unix(35, 0))
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = svc.CurrentIndex(time.Unix(45, 0))
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = svc.CurrentIndex(time.Unix(55, 0))
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	idx, ok = svc.CurrentIndex(time.Unix(65, 0))
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestCurrentIndexSubSecondRotation(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg"), file("b.jpg")})
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{RotationPeriod: 500 * time.Millisecond})
	_, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	idx, ok := svc.CurrentIndex(time.Unix(100, 0))
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = svc.CurrentIndex(time.Unix(100, int64(500*time.Millisecond)))
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestCurrentIndexEmptyFolder(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", nil)
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{})
	_, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	_, ok := svc.CurrentIndex(time.Now())
	assert.False(t, ok)
}

func TestCurrentReturnsACopy(t *testing.T) {
	source := newFakeSource()
	source.setListing("/a", []graph.DriveItem{file("a.jpg")})
	ff := &fakeFolders{folders: folders("/a")}

	svc := newTestService(t, source, ff, Config{})
	_, err := svc.RefreshRandom(context.Background())
	require.NoError(t, err)

	first := svc.Current()
	first.Photos[0].Name = "mutated.jpg"

	assert.Equal(t, "a.jpg", svc.Current().Photos[0].Name)
}

func TestIsRefreshBusy(t *testing.T) {
	assert.True(t, IsRefreshBusy(ErrRefreshBusy))
	assert.False(t, IsRefreshBusy(errors.New("other")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(ErrFolderNotFound))
	assert.False(t, IsNotFound(ErrRefreshBusy))
}
