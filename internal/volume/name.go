package volume

import "fmt"

// Name returns the standard creation-time filename for volume id.
func Name(id int) string {
	return fmt.Sprintf("vol-%03d.parxv", id)
}

// FinalName returns the optional finalize-time rename target embedding the
// volume's entry count (§6.3).
func FinalName(id, entryCount int) string {
	return fmt.Sprintf("vol-%03d+%03d.parxv", id, entryCount)
}
