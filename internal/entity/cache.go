package entity

import "time"

// GlobalScope is the cache scope of the cross-user benchmark row.
const GlobalScope = "global"

// CacheRow is a single overwrite-in-place aggregate row. Scope is a user id for dashboards
// or GlobalScope for benchmarks.
type CacheRow struct {
	Scope         string
	Payload       []byte
	LastUpdatedAt time.Time
}

// Token is an access token for the marketplace API and the instant it expires.
type Token struct {
	Value  string
	Expiry time.Time
}
