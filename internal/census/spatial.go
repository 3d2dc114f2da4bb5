package census

import "strings"

// Spatial buckets used to aggregate object positions across images.
const (
	BucketLeft    = "left"
	BucketCenter  = "center"
	BucketRight   = "right"
	BucketTop     = "top"
	BucketBottom  = "bottom"
	BucketUnknown = "unknown"
)

// SpatialBucket maps a qualitative region ("top-left quadrant", "middle of
// the frame") to a coarse bucket. Horizontal cues win over vertical ones.
func SpatialBucket(boundingDescription string) string {
	desc := strings.ToLower(boundingDescription)
	switch {
	case strings.TrimSpace(desc) == "":
		return BucketUnknown
	case strings.Contains(desc, "left"):
		return BucketLeft
	case strings.Contains(desc, "right"):
		return BucketRight
	case strings.Contains(desc, "top"), strings.Contains(desc, "upper"):
		return BucketTop
	case strings.Contains(desc, "bottom"), strings.Contains(desc, "lower"):
		return BucketBottom
	case strings.Contains(desc, "center"), strings.Contains(desc, "centre"), strings.Contains(desc, "middle"):
		return BucketCenter
	default:
		return BucketUnknown
	}
}

// Spatial counts objects per bucket.
func (r Result) Spatial() map[string]int {
	if !r.Known {
		return nil
	}
	buckets := make(map[string]int)
	for _, obj := range r.Objects {
		buckets[SpatialBucket(obj.BoundingDescription)]++
	}
	return buckets
}
