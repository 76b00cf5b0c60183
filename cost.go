package cuckoodex

// EstimateFalsePositiveRate returns the theoretical false positive
// rate of a cuckoo filter:
//
//	FPR = (2 * tagsPerBucket) / 2^bitsPerTag
//
// For the defaults (12 bits, 4 tags) that is (2*4)/4096, about 0.2%.
// The result is clamped to [0.0001, 1.0].
func EstimateFalsePositiveRate(bitsPerTag, tagsPerBucket int) float64 {
	if bitsPerTag < 1 {
		bitsPerTag = 1
	}
	if bitsPerTag > 62 {
		bitsPerTag = 62
	}

	fpr := (2.0 * float64(tagsPerBucket)) / float64(uint64(1)<<uint(bitsPerTag))

	if fpr > 1.0 {
		fpr = 1.0
	}
	if fpr < 0.0001 {
		fpr = 0.0001
	}

	return fpr
}

// CostHint summarizes what an external planner needs to cost a scan:
// every page is visited, and the expected fraction of candidate rows
// is floored by the false positive rate.
type CostHint struct {
	NumPages    uint32
	NumTuples   int64
	Selectivity float64
}

// CostHint sweeps the index and returns planner inputs. Selectivity is
// the false positive rate of the persisted settings, the floor on any
// equality estimate.
func (i *Index) CostHint() (CostHint, error) {
	stats, err := i.Stats()
	if err != nil {
		return CostHint{}, err
	}

	return CostHint{
		NumPages:    stats.NumPages,
		NumTuples:   stats.NumTuples,
		Selectivity: EstimateFalsePositiveRate(stats.BitsPerTag, stats.TagsPerBucket),
	}, nil
}
