package employee

import (
	"fmt"
	"strings"
)

// Bucket is the increment-rule class of a record. Every name falls into
// exactly one bucket.
type Bucket int

// Buckets applied by the increment rule.
const (
	BucketOther Bucket = iota
	BucketE
	BucketG
)

// prefixBuckets is the single source for both Classify and the SQL CASE
// expression used by database engines. Prefixes are case-sensitive.
var prefixBuckets = []struct {
	prefix string
	bucket Bucket
}{
	{prefix: "E", bucket: BucketE},
	{prefix: "G", bucket: BucketG},
}

// Classify returns the bucket for name.
func Classify(name string) Bucket {
	for _, pb := range prefixBuckets {
		if strings.HasPrefix(name, pb.prefix) {
			return pb.bucket
		}
	}
	return BucketOther
}

// Delta is the amount the increment rule adds to records in b.
func (b Bucket) Delta() int64 {
	switch b {
	case BucketE:
		return 1
	case BucketG:
		return 10
	default:
		return 100
	}
}

func (b Bucket) String() string {
	switch b {
	case BucketE:
		return "E"
	case BucketG:
		return "G"
	default:
		return "other"
	}
}

// IncrementCaseSQL renders the increment rule as a SQL CASE expression over
// the first character of column, e.g.
//
//	CASE substr(name, 1, 1) WHEN 'E' THEN 1 WHEN 'G' THEN 10 ELSE 100 END
//
// substr is available on both SQLite and Postgres and compares case-sensitively.
func IncrementCaseSQL(column string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CASE substr(%s, 1, 1)", column)
	for _, pb := range prefixBuckets {
		fmt.Fprintf(&sb, " WHEN '%s' THEN %d", pb.prefix, pb.bucket.Delta())
	}
	fmt.Fprintf(&sb, " ELSE %d END", BucketOther.Delta())
	return sb.String()
}
