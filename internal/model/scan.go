package model

import "time"

// Instrument is one entry of the tradable universe snapshot.
type Instrument struct {
	Code  string
	Name  string
	Price float64
}

// Match is a single screener hit: an instrument whose candle sequence
// contains a stretch reproducing the target pattern.
type Match struct {
	Code     string
	Name     string
	Price    float64
	Score    float64 // longest common substring length / target length
	Sequence string  // the instrument's full up/down encoding
}

// ScanReport bundles everything one scan produced, for recording and
// notification.
type ScanReport struct {
	Trigger    string // "DAILY", "WEEKLY", "MANUAL"
	TargetSeq  string
	Period     Period
	Start      time.Time
	End        time.Time
	Scanned    int // candidates actually dispatched to workers
	Duration   time.Duration
	Matches    []Match
	FinishedAt time.Time
}
