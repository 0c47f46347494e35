// Package graph implements a read-only Microsoft Graph client for
// SharePoint document libraries.
//
// The client owns the full token lifecycle: it acquires an application
// token via client credentials, attaches it to every outbound call, and
// transparently re-authenticates once when a call comes back 401. Site
// and drive identifiers are resolved lazily and cached for the lifetime
// of the client.
package graph

import "time"

// Credentials holds the Azure AD application registration and the
// SharePoint location to read from. Immutable for the lifetime of a
// configured client.
type Credentials struct {
	// TenantID is the Azure AD tenant (directory) identifier.
	TenantID string

	// ClientID is the application (client) identifier.
	ClientID string

	// ClientSecret is the application client secret.
	ClientSecret string

	// SiteURL is the full SharePoint site URL, e.g.
	// "https://contoso.sharepoint.com/sites/family".
	SiteURL string

	// LibraryName is the display name of the document library
	// (drive) to read from, e.g. "Documents".
	LibraryName string

	// BaseFolderPath is the library-relative root under which photo
	// folders live, e.g. "/General/Fotos".
	BaseFolderPath string
}

// DriveItem is a single child of a drive folder as returned by the
// Graph children listing. Exactly one of Folder and File is set.
type DriveItem struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Size         int64           `json:"size"`
	WebURL       string          `json:"webUrl"`
	DownloadURL  string          `json:"@microsoft.graph.downloadUrl"`
	LastModified time.Time       `json:"lastModifiedDateTime"`
	Folder       *FolderFacet    `json:"folder"`
	File         *FileFacet      `json:"file"`
	Thumbnails   []ThumbnailSet  `json:"thumbnails"`
	Parent       *ParentRef      `json:"parentReference"`
}

// IsFolder reports whether the item carries the folder facet.
func (d *DriveItem) IsFolder() bool { return d.Folder != nil }

// IsFile reports whether the item carries the file facet.
func (d *DriveItem) IsFile() bool { return d.File != nil }

// BestThumbnailURL returns the largest available thumbnail URL, or ""
// when the item has no thumbnails.
func (d *DriveItem) BestThumbnailURL() string {
	for _, set := range d.Thumbnails {
		for _, t := range []*Thumbnail{set.Large, set.Medium, set.Small} {
			if t != nil && t.URL != "" {
				return t.URL
			}
		}
	}
	return ""
}

// FolderFacet marks an item as a folder.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// FileFacet marks an item as a file.
type FileFacet struct {
	MimeType string `json:"mimeType"`
}

// ThumbnailSet is one set of pre-rendered thumbnails for an item.
type ThumbnailSet struct {
	Small  *Thumbnail `json:"small"`
	Medium *Thumbnail `json:"medium"`
	Large  *Thumbnail `json:"large"`
}

// Thumbnail is a single rendition within a thumbnail set.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ParentRef locates an item within its drive.
type ParentRef struct {
	DriveID string `json:"driveId"`
	Path    string `json:"path"`
}
