package binance

import (
	"testing"
	"time"
)

func TestChunkTimeRangeSplits(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 200)

	chunks := ChunkTimeRange(start, end, 90)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 200 days at 90-day max, got %d", len(chunks))
	}
	// Chronological and contiguous: each chunk starts where the previous
	// ended, first starts at start, last ends at end.
	if !chunks[0].Start.Equal(start) {
		t.Errorf("first chunk starts at %v, want %v", chunks[0].Start, start)
	}
	if !chunks[len(chunks)-1].End.Equal(end) {
		t.Errorf("last chunk ends at %v, want %v", chunks[len(chunks)-1].End, end)
	}
	for i := 1; i < len(chunks); i++ {
		if !chunks[i].Start.Equal(chunks[i-1].End) {
			t.Errorf("chunk %d not contiguous: starts %v, previous ended %v", i, chunks[i].Start, chunks[i-1].End)
		}
	}
	for i, c := range chunks {
		if c.End.Sub(c.Start) > 90*24*time.Hour {
			t.Errorf("chunk %d longer than 90 days", i)
		}
	}
}

func TestChunkTimeRangeSingleChunk(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 10)

	chunks := ChunkTimeRange(start, end, 90)
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if !chunks[0].Start.Equal(start) || !chunks[0].End.Equal(end) {
		t.Errorf("chunk = %+v, want [%v, %v]", chunks[0], start, end)
	}
}

func TestChunkTimeRangeDaily(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)

	chunks := ChunkTimeRange(start, end, 1)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 daily chunks, got %d", len(chunks))
	}
}

func TestChunkTimeRangeEmptyWindow(t *testing.T) {
	now := time.Now()
	if chunks := ChunkTimeRange(now, now, 90); chunks != nil {
		t.Errorf("empty window should produce no chunks, got %d", len(chunks))
	}
	if chunks := ChunkTimeRange(now, now.Add(-time.Hour), 90); chunks != nil {
		t.Errorf("inverted window should produce no chunks, got %d", len(chunks))
	}
}

func TestMillisRoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 15, 12, 30, 45, 0, time.UTC)
	if got := FromMillis(Millis(ts)); !got.Equal(ts) {
		t.Errorf("round trip = %v, want %v", got, ts)
	}
}
