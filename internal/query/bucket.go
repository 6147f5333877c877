package query

import (
	"strconv"
	"strings"

	"transactions/internal/core"
)

// BucketCaseSQL renders a CASE expression mapping column to its index in
// core.PriceBuckets.
func BucketCaseSQL(column string) string {
	var b strings.Builder
	b.WriteString("CASE")
	last := len(core.PriceBuckets) - 1
	for i, bucket := range core.PriceBuckets {
		if bucket.Open || i == last {
			b.WriteString(" ELSE " + strconv.Itoa(i))
			break
		}
		b.WriteString(" WHEN " + column + " <= " + strconv.Itoa(bucket.To) + " THEN " + strconv.Itoa(i))
	}
	b.WriteString(" END")
	return b.String()
}
