package recorder

import "DNAHunter/internal/model"

// Recorder persists scan history for later review.
type Recorder interface {
	RecordScan(rep *model.ScanReport) error
	Close() error
}
