package binance

import "time"

// TimeRange is one contiguous [Start, End] sub-window of a chunked query.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// ChunkTimeRange splits [start, end] into contiguous sub-ranges no longer
// than maxDays each, honoring an endpoint's historical-lookback limit.
// Chunks come back in chronological order so partial failures leave a
// consistent prefix of history ingested.
func ChunkTimeRange(start, end time.Time, maxDays int) []TimeRange {
	if !end.After(start) || maxDays <= 0 {
		return nil
	}
	step := time.Duration(maxDays) * 24 * time.Hour
	var chunks []TimeRange
	for cursor := start; cursor.Before(end); cursor = cursor.Add(step) {
		chunkEnd := cursor.Add(step)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, TimeRange{Start: cursor, End: chunkEnd})
	}
	return chunks
}

// Millis converts a time to the millisecond timestamps the exchange expects.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts an exchange millisecond timestamp to UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
