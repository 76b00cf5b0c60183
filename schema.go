package cuckoodex

import "github.com/hupe1980/cuckoodex/internal/page"

// Option defaults and bounds. Values outside the bounds are rejected
// at Create time.
const (
	DefaultBitsPerTag = 12
	MinBitsPerTag     = 4
	MaxBitsPerTag     = 32

	DefaultTagsPerBucket = 4
	MinTagsPerBucket     = 2
	MaxTagsPerBucket     = 8

	DefaultMaxKicks = 500
	MinMaxKicks     = 50
	MaxMaxKicks     = 2000
)

// OptionSpec describes one persisted index option: its bounds, default
// and a human-readable description. Hosts embedding the index can use
// the schema to drive their own option plumbing.
type OptionSpec struct {
	Name        string
	Description string
	Default     int
	Min         int
	Max         int
}

// OptionSchema returns the specs of all persisted options.
func OptionSchema() []OptionSpec {
	return []OptionSpec{
		{
			Name:        "bits_per_tag",
			Description: "Number of bits per fingerprint tag (higher = lower false positive rate)",
			Default:     DefaultBitsPerTag,
			Min:         MinBitsPerTag,
			Max:         MaxBitsPerTag,
		},
		{
			Name:        "tags_per_bucket",
			Description: "Number of fingerprint tags per bucket (2, 4, or 8)",
			Default:     DefaultTagsPerBucket,
			Min:         MinTagsPerBucket,
			Max:         MaxTagsPerBucket,
		},
		{
			Name:        "max_kicks",
			Description: "Maximum number of relocations during insert",
			Default:     DefaultMaxKicks,
			Min:         MinMaxKicks,
			Max:         MaxMaxKicks,
		},
	}
}

// validateSettings checks each persisted option against its spec.
func validateSettings(o options) (page.Settings, error) {
	specs := OptionSchema()
	values := []int{o.bitsPerTag, o.tagsPerBucket, o.maxKicks}

	for i, spec := range specs {
		if values[i] < spec.Min || values[i] > spec.Max {
			return page.Settings{}, &ErrInvalidOption{
				Name:  spec.Name,
				Value: values[i],
				Min:   spec.Min,
				Max:   spec.Max,
			}
		}
	}

	return page.Settings{
		BitsPerTag:    uint32(o.bitsPerTag),    //nolint:gosec // bounds checked above
		TagsPerBucket: uint32(o.tagsPerBucket), //nolint:gosec // bounds checked above
		MaxKicks:      uint32(o.maxKicks),      //nolint:gosec // bounds checked above
	}, nil
}
