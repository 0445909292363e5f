package poselog

import (
	"sort"

	"github.com/golang/geo/r2"
	"github.com/samber/lo"

	"go.viam.com/geocal/referenceframe"
)

// PositionLog is an immutable sequence of pose records ordered by time. It may be shared by any
// number of readers.
type PositionLog struct {
	records []PoseRecord
}

// NewPositionLog copies records and sorts the copy by time. Records with equal times keep their
// relative order.
func NewPositionLog(records []PoseRecord) *PositionLog {
	sorted := append([]PoseRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})
	return &PositionLog{records: sorted}
}

// Len returns the number of records.
func (l *PositionLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.records)
}

// At returns the i'th record in time order.
func (l *PositionLog) At(i int) PoseRecord {
	return l.records[i]
}

// Records returns a copy of every record in time order.
func (l *PositionLog) Records() []PoseRecord {
	if l == nil {
		return nil
	}
	return append([]PoseRecord(nil), l.records...)
}

// First returns the earliest record.
func (l *PositionLog) First() (PoseRecord, error) {
	if l.Len() == 0 {
		return PoseRecord{}, ErrEmptyLog
	}
	return l.records[0], nil
}

// Last returns the latest record.
func (l *PositionLog) Last() (PoseRecord, error) {
	if l.Len() == 0 {
		return PoseRecord{}, ErrEmptyLog
	}
	return l.records[len(l.records)-1], nil
}

// Extents returns the bounding box of every position in the log.
func (l *PositionLog) Extents() (referenceframe.Extents, error) {
	if l.Len() == 0 {
		return referenceframe.Extents{}, ErrEmptyLog
	}
	return referenceframe.NewExtents(lo.Map(l.records, func(r PoseRecord, _ int) r2.Point {
		return r2.Point{X: r.X, Y: r.Y}
	})), nil
}
