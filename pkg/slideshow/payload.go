package slideshow

import (
	"fmt"
	"sort"
	"time"

	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/graph"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/match"
)

// Photo describes one photo within the committed folder payload.
type Photo struct {
	// Name is the file name within its folder.
	Name string `json:"name"`

	// Index is the stable position within the folder's name-sorted
	// sequence, 0..n-1. Reassigned on every refresh.
	Index int `json:"index"`

	// ProxyURL is the locally-issued stable URL standing in for the
	// volatile remote URLs.
	ProxyURL string `json:"proxy_url"`

	// WebURL is the SharePoint browser URL for the item.
	WebURL string `json:"web_url,omitempty"`

	// DownloadURL is the full-quality pre-authenticated URL.
	// Short-lived; empty when Graph did not return one.
	DownloadURL string `json:"download_url,omitempty"`

	// ThumbnailURL is the largest available thumbnail rendition.
	// Empty when the item has no thumbnails.
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Modified is the remote last-modified timestamp.
	Modified time.Time `json:"modified"`
}

// FolderPayload is the single cached unit describing the currently
// displayed folder. Exactly one instance is live per configured entry;
// it is fully replaced by each successful refresh, never mutated
// field by field.
type FolderPayload struct {
	FolderName    string    `json:"folder_name"`
	FolderPath    string    `json:"folder_path"`
	Photos        []Photo   `json:"photos"`
	RecentFolders []string  `json:"recent_folders"`
	LastUpdated   time.Time `json:"last_updated"`

	// Version counts successful commits for this entry, starting at 1.
	// Lets consumers tell a genuinely new payload from a re-read.
	Version uint64 `json:"version"`
}

// PhotoCount returns the number of photos in the payload.
func (p *FolderPayload) PhotoCount() int {
	return len(p.Photos)
}

// clone returns a deep copy so readers can never observe a later
// commit through shared slices.
func (p *FolderPayload) clone() *FolderPayload {
	if p == nil {
		return nil
	}
	out := *p
	out.Photos = make([]Photo, len(p.Photos))
	copy(out.Photos, p.Photos)
	out.RecentFolders = make([]string, len(p.RecentFolders))
	copy(out.RecentFolders, p.RecentFolders)
	return &out
}

// buildPhotos converts a folder listing into the ordered photo
// sequence: image files only, sorted by name ascending, with stable
// indices and derived proxy URLs.
func buildPhotos(entryID string, items []graph.DriveItem, matcher *match.ImageMatcher) []Photo {
	var files []graph.DriveItem
	for _, item := range items {
		if item.IsFile() && matcher.Match(item.Name) {
			files = append(files, item)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	photos := make([]Photo, 0, len(files))
	for i, item := range files {
		photos = append(photos, Photo{
			Name:         item.Name,
			Index:        i,
			ProxyURL:     ProxyURL(entryID, i),
			WebURL:       item.WebURL,
			DownloadURL:  item.DownloadURL,
			ThumbnailURL: item.BestThumbnailURL(),
			Size:         item.Size,
			Modified:     item.LastModified,
		})
	}
	return photos
}

// ProxyURL derives the stable local URL for a photo. The URL space is
// a function of (entry, index) only, so it stays small and stable no
// matter how long or volatile the remote URLs are.
func ProxyURL(entryID string, index int) string {
	return fmt.Sprintf("/image/%s/%d", entryID, index)
}
