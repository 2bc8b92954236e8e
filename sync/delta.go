package sync

import (
	"fmt"
	"time"
)

const deltaDateFormat = "2006-01-02"

// BuildDeltaFilter converts the last successful sync instant into a ledger
// filter expression. The ledger stores update timestamps as a date column and
// a separate integer time-of-day column (hours*100+minutes), so the boundary
// is a date-then-time lexicographic comparison: a record updated at exactly
// lastSync is excluded, one updated a minute later is included.
func BuildDeltaFilter(lastSync time.Time) string {
	utc := lastSync.UTC()
	date := utc.Format(deltaDateFormat)
	timeOfDay := utc.Hour()*100 + utc.Minute()
	return fmt.Sprintf("UpdateDate gt '%s' or (UpdateDate eq '%s' and UpdateTime gt %d)",
		date, date, timeOfDay)
}

// supplierFilter composes the partner-type discriminator with an optional
// delta clause.
func supplierFilter(partnerType, deltaFilter string) string {
	base := fmt.Sprintf("CardType eq '%s'", partnerType)
	if deltaFilter == "" {
		return base
	}
	return fmt.Sprintf("%s and (%s)", base, deltaFilter)
}
