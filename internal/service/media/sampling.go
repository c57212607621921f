// Package media finalizes closed visits: clip trimming, region sampling and upload.
package media

import (
	"fmt"
	"sort"
)

// fullUploadLimit is the region count below which every region is uploaded.
const fullUploadLimit = 5

// SelectRegions picks which of n queued regions to upload and which one
// represents the visit. ok is false when there are no regions.
//
// Below fullUploadLimit every region is uploaded. Otherwise the first, last
// and quartile regions are. The representative is always the median of all n,
// whether or not it was sampled.
func SelectRegions(n int) (sampled []int, representative int, ok bool) {
	if n <= 0 {
		return nil, 0, false
	}

	representative = (n - 1) / 2

	if n < fullUploadLimit {
		sampled = make([]int, n)
		for i := range sampled {
			sampled[i] = i
		}
		return sampled, representative, true
	}

	seen := make(map[int]bool, 5)
	for _, i := range []int{0, n / 4, n / 2, n * 3 / 4, n - 1} {
		if i > n-1 {
			i = n - 1
		}
		if !seen[i] {
			seen[i] = true
			sampled = append(sampled, i)
		}
	}
	sort.Ints(sampled)
	return sampled, representative, true
}

// KeepFrames returns how many leading frames of a visit clip to keep: up to
// the last frame the subject was seen plus trailing seconds of video.
func KeepFrames(startFrame, lastSeenFrame int, fps, trailingSeconds float64) int {
	local := lastSeenFrame - startFrame
	if local < 0 {
		local = 0
	}
	return local + int(fps*trailingSeconds)
}

// ClipKey is the object key of a visit's clip.
func ClipKey(visitID int64) string {
	return fmt.Sprintf("visits/visit_%d/visit.mp4", visitID)
}

// RegionKey is the object key of one uploaded region image.
func RegionKey(visitID int64, file string) string {
	return fmt.Sprintf("visits/visit_%d/rois/%s", visitID, file)
}
