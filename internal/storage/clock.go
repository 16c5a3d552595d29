package storage

import "time"

var monoBase = time.Now()

// MonoNow returns nanoseconds since an arbitrary process-local epoch on
// a strictly non-decreasing clock. Session expiry is measured against
// this value.
func MonoNow() int64 {
	return int64(time.Since(monoBase))
}

// WallNowMillis returns the wall clock as milliseconds since the Unix
// epoch. Message timestamps use this value.
func WallNowMillis() int64 {
	return time.Now().UnixMilli()
}
