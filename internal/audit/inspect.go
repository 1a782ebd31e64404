package audit

import "github.com/parxive/parx/internal/volume"

// VolumeInspection is a single volume's header/trailer/index summary,
// readable without any manifest — the audit equivalent of the original
// CLI's outer-decode inspection path.
type VolumeInspection struct {
	Path         string
	K, M         int
	EntryCount   int
	OuterEntries int
	Stripes      map[uint32]int
}

// InspectVolume opens path and reports its header fields plus a per-stripe
// entry tally, separating outer-parity entries (identified by
// volume.OuterStripeSentinel) from inner-stripe ones.
func InspectVolume(path string) (*VolumeInspection, error) {
	r, err := volume.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	trailer, err := r.ReadTrailer()
	if err != nil {
		return nil, err
	}
	entries, err := r.ReadIndex(trailer, volume.DefaultIndexLimits())
	if err != nil {
		return nil, err
	}

	out := &VolumeInspection{
		Path:       path,
		K:          int(r.Header.K),
		M:          int(r.Header.M),
		EntryCount: len(entries),
		Stripes:    make(map[uint32]int),
	}
	for _, e := range entries {
		if e.IsOuter() {
			out.OuterEntries++
			continue
		}
		out.Stripes[e.Stripe]++
	}
	return out, nil
}
