package poselog

import (
	"github.com/pkg/errors"

	"go.viam.com/geocal/config"
	"go.viam.com/geocal/logging"
	"go.viam.com/geocal/utils"
)

// Cursor answers pose queries against a position log. Replay issues queries in non-decreasing
// time order, so the cursor only ever moves forward and a run of queries over the whole log costs
// one pass over it.
//
// A query earlier than the previous one is out of order. The cursor then resets to the start of
// the log and scans forward again, so every query returns the same result a search from scratch
// would; Resets counts how often this happened.
//
// A Cursor is not safe for concurrent use.
type Cursor struct {
	log    *PositionLog
	logger logging.Logger

	// idx is the last record with Time <= lastQuery, or 0 when lastQuery precedes the log.
	idx       int
	lastQuery int64
	queried   bool
	resets    int
}

// NewCursor returns a cursor positioned at the start of log.
func NewCursor(log *PositionLog, logger logging.Logger) *Cursor {
	return &Cursor{log: log, logger: logger}
}

// Rebind points the cursor at a new log and rewinds it. The old log is not referenced afterwards.
func (c *Cursor) Rebind(log *PositionLog) {
	c.log = log
	c.idx = 0
	c.queried = false
}

// Log returns the log the cursor is bound to.
func (c *Cursor) Log() *PositionLog {
	return c.log
}

// Resets returns how many out of order queries forced a rescan.
func (c *Cursor) Resets() int {
	return c.resets
}

// Query dispatches to Nearest or Interpolated.
func (c *Cursor) Query(t int64, method config.Method) (PoseRecord, error) {
	switch method {
	case config.MethodNearest:
		return c.Nearest(t)
	case config.MethodInterpolated:
		return c.Interpolated(t)
	default:
		return PoseRecord{}, errors.Errorf("unknown query method %q", method)
	}
}

// Nearest returns the record closest in time to t. When two records are equally close, or several
// share the time t, the earlier one wins. Times outside the log clamp to its first or last record.
func (c *Cursor) Nearest(t int64) (PoseRecord, error) {
	prev, next, ok, err := c.bracket(t)
	if err != nil || !ok {
		return prev, err
	}
	if next.Time-t < t-prev.Time {
		return next, nil
	}
	return prev, nil
}

// Interpolated returns the pose at t, linearly interpolated between the records that bracket it.
// Yaw follows the shorter arc between the two headings; roll and pitch are interpolated linearly.
// Satellite counts are taken from the earlier record. A time equal to a record's returns that
// record as stored, and times outside the log clamp to its first or last record.
func (c *Cursor) Interpolated(t int64) (PoseRecord, error) {
	prev, next, ok, err := c.bracket(t)
	if err != nil || !ok {
		return prev, err
	}
	frac := float64(t-prev.Time) / float64(next.Time-prev.Time)
	return PoseRecord{
		Time:       t,
		Roll:       utils.Lerp(prev.Roll, next.Roll, frac),
		Pitch:      utils.Lerp(prev.Pitch, next.Pitch, frac),
		Yaw:        utils.InterpolateAngleRad(prev.Yaw, next.Yaw, frac),
		X:          utils.Lerp(prev.X, next.X, frac),
		Y:          utils.Lerp(prev.Y, next.Y, frac),
		Z:          utils.Lerp(prev.Z, next.Z, frac),
		Satellites: prev.Satellites,
	}, nil
}

// bracket moves the cursor to t and returns the records with prev.Time < t < next.Time. ok is
// false when no interpolation is needed and prev is the answer as stored: the first record at
// exactly t, or the boundary record to clamp to when t is outside the log.
func (c *Cursor) bracket(t int64) (prev, next PoseRecord, ok bool, err error) {
	n := c.log.Len()
	if n == 0 {
		return PoseRecord{}, PoseRecord{}, false, ErrEmptyLog
	}
	if c.queried && t < c.lastQuery {
		c.resets++
		if c.logger != nil {
			c.logger.Debugw("out of order pose query, rescanning log", "time", t, "previous", c.lastQuery)
		}
		c.idx = 0
	}
	c.queried = true
	c.lastQuery = t

	records := c.log.records
	for c.idx+1 < n && records[c.idx+1].Time <= t {
		c.idx++
	}
	switch {
	case records[c.idx].Time == t:
		first := c.idx
		for first > 0 && records[first-1].Time == t {
			first--
		}
		return records[first], PoseRecord{}, false, nil
	case t <= records[0].Time:
		return records[0], PoseRecord{}, false, nil
	case c.idx == n-1:
		return records[n-1], PoseRecord{}, false, nil
	default:
		return records[c.idx], records[c.idx+1], true, nil
	}
}
