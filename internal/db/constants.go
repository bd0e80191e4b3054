package db

import "time"

// timeLayout is how created_at is written. Values are always UTC so that
// lexical order matches chronological order.
const timeLayout = "2006-01-02 15:04:05.000"

// timeFormats are the created_at layouts accepted when reading rows back.
var timeFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05 +0000 UTC",
}
