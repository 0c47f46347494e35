package slideshow

import (
	"math/rand"

	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/discovery"
)

// pickRandom selects uniformly among eligible folders not present in
// history. When every eligible folder is in history the exclusion is
// waived and selection runs over the full eligible set, so a selection
// always succeeds whenever the eligible set is non-empty.
func pickRandom(rng *rand.Rand, eligible []discovery.Folder, history *History) (discovery.Folder, error) {
	if len(eligible) == 0 {
		return discovery.Folder{}, ErrNoEligibleFolder
	}

	candidates := eligible
	if history != nil && history.Len() > 0 {
		fresh := make([]discovery.Folder, 0, len(eligible))
		for _, f := range eligible {
			if !history.Contains(f.Path) {
				fresh = append(fresh, f)
			}
		}
		if len(fresh) > 0 {
			candidates = fresh
		}
	}

	return candidates[rng.Intn(len(candidates))], nil
}

// pickSpecific validates that path names an eligible folder.
func pickSpecific(path string, eligible []discovery.Folder) (discovery.Folder, error) {
	for _, f := range eligible {
		if f.Path == path {
			return f, nil
		}
	}
	return discovery.Folder{}, ErrFolderNotFound
}
