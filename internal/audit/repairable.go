package audit

import (
	"github.com/parxive/parx/internal/manifest"
	"github.com/parxive/parx/internal/repair"
)

// RepairableResult reports whether every damaged stripe currently has
// enough inner parity to be repaired.
type RepairableResult struct {
	Repairable   bool
	WorstStripe  uint32
	WorstDamage  int
	InnerParityM int
}

// CheckRepairable re-hashes mf against root, tallies the worst per-stripe
// damage count, and compares it against the manifest's configured inner
// parity M — the "Repairable: YES/NO" contract the CLI's audit command
// reports.
func CheckRepairable(mf *manifest.Manifest, root string) (*RepairableResult, error) {
	damaged, err := repair.DetectDamage(mf, root)
	if err != nil {
		return nil, err
	}

	innerM := manifest.ComputeM(mf.StripeK, mf.ParityPct)
	result := &RepairableResult{Repairable: true, InnerParityM: innerM}

	for stripe, missing := range damaged {
		if len(missing) > result.WorstDamage {
			result.WorstDamage = len(missing)
			result.WorstStripe = stripe
		}
		if len(missing) > innerM {
			result.Repairable = false
		}
	}
	return result, nil
}
