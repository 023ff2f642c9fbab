package contextstore

import "framecast/internal/stagedoc"

// SelectTier places a document by its stored size: strictly above the
// threshold is offloaded, everything else (including exactly the threshold)
// stays inline.
func SelectTier(size, threshold int) stagedoc.Tier {
	if size > threshold {
		return stagedoc.TierOffloaded
	}
	return stagedoc.TierInline
}
