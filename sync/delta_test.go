package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDeltaFilter(t *testing.T) {
	tests := []struct {
		name     string
		lastSync time.Time
		expected string
	}{
		{
			name:     "afternoon watermark",
			lastSync: time.Date(2025, 10, 24, 14, 0, 0, 0, time.UTC),
			expected: "UpdateDate gt '2025-10-24' or (UpdateDate eq '2025-10-24' and UpdateTime gt 1400)",
		},
		{
			name:     "minutes after midnight",
			lastSync: time.Date(2025, 10, 24, 0, 5, 0, 0, time.UTC),
			expected: "UpdateDate gt '2025-10-24' or (UpdateDate eq '2025-10-24' and UpdateTime gt 5)",
		},
		{
			name:     "non-utc instant is converted first",
			lastSync: time.Date(2025, 10, 24, 16, 30, 0, 0, time.FixedZone("PET+5", 5*60*60)),
			expected: "UpdateDate gt '2025-10-24' or (UpdateDate eq '2025-10-24' and UpdateTime gt 1130)",
		},
		{
			name:     "seconds are ignored",
			lastSync: time.Date(2025, 10, 24, 14, 0, 59, 0, time.UTC),
			expected: "UpdateDate gt '2025-10-24' or (UpdateDate eq '2025-10-24' and UpdateTime gt 1400)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildDeltaFilter(tt.lastSync))
		})
	}
}

func TestSupplierFilter(t *testing.T) {
	assert.Equal(t, "CardType eq 'cSupplier'", supplierFilter("cSupplier", ""))

	delta := BuildDeltaFilter(time.Date(2025, 10, 24, 14, 0, 0, 0, time.UTC))
	assert.Equal(t,
		"CardType eq 'cSupplier' and (UpdateDate gt '2025-10-24' or (UpdateDate eq '2025-10-24' and UpdateTime gt 1400))",
		supplierFilter("cSupplier", delta))
}
