package streamwriter

import "time"

// archiveTimestampFormat renders a bucket as the YYYYMMDDHHMMSS string
// used in archive file names.
const archiveTimestampFormat = "20060102150405"

// ComputeBucket floors t, in UTC, to the nearest granularity-second
// slot within its containing hour. For example, with granularity=300
// (5 minutes), 12:14:02 floors to 12:10:00 because 12:14 truncates to
// the 5-minute slot starting at 12:10.
func ComputeBucket(t time.Time, granularitySeconds int64) (time.Time, string) {
	t = t.UTC()
	floorHour := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)

	residue := int64(t.Sub(floorHour) / time.Second)
	slot := (residue / granularitySeconds) * granularitySeconds

	bucket := floorHour.Add(time.Duration(slot) * time.Second)
	return bucket, bucket.Format(archiveTimestampFormat)
}
