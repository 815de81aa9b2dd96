package usage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// KeyPointBytes approximates the stored size of one analysis key point.
	KeyPointBytes int64 = 100
	// MetadataOverheadBytes is the fixed per-record metadata overhead.
	MetadataOverheadBytes int64 = 1024
)

// Breakdown splits usage by category. All values are bytes.
type Breakdown struct {
	Content       int64 `json:"content"`
	Transcription int64 `json:"transcription"`
	Analysis      int64 `json:"analysis"`
	Metadata      int64 `json:"metadata"`
}

// Sum returns the total of all categories.
func (b Breakdown) Sum() int64 {
	return b.Content + b.Transcription + b.Analysis + b.Metadata
}

// Snapshot is the usage of one tenant at ComputedAt.
type Snapshot struct {
	TenantID             uuid.UUID `json:"tenant_id"`
	TotalBytes           int64     `json:"total_bytes"`
	Breakdown            Breakdown `json:"breakdown"`
	ItemCount            int64     `json:"item_count"`
	TranscriptionMinutes int64     `json:"transcription_minutes"`
	ComputedAt           time.Time `json:"computed_at"`
}

// Equal reports whether two snapshots carry the same measured values.
// ComputedAt is ignored.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.TenantID == o.TenantID &&
		s.TotalBytes == o.TotalBytes &&
		s.Breakdown == o.Breakdown &&
		s.ItemCount == o.ItemCount &&
		s.TranscriptionMinutes == o.TranscriptionMinutes
}

// MB returns TotalBytes in binary megabytes.
func (s Snapshot) MB() float64 {
	return float64(s.TotalBytes) / (1 << 20)
}

// GB returns TotalBytes in binary gigabytes.
func (s Snapshot) GB() float64 {
	return float64(s.TotalBytes) / (1 << 30)
}

// Human formats TotalBytes for display, e.g. "8.50 GB".
func (s Snapshot) Human() string {
	return HumanBytes(s.TotalBytes)
}

// HumanBytes formats a byte count with binary units.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 4; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGTP"[exp])
}
