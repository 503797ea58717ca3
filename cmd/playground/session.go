package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Level marks an output entry as a result or an error.
type Level string

const (
	LevelResult Level = "result"
	LevelError  Level = "error"
)

// Entry is one line of the output log.
type Entry struct {
	Time    time.Time
	Message string
	Level   Level
	ID      uuid.UUID
}

func (e Entry) String() string {
	return e.Time.Format(time.TimeOnly) + ": " + e.Message
}

// interpreter is the part of the bridge a session uses.
type interpreter interface {
	InterpretJSON(ctx context.Context, source string) (string, error)
}

// session runs programs and keeps the output log. Program errors become
// error entries; they never end the session.
type session struct {
	interp  interpreter
	logger  *zap.Logger
	now     func() time.Time
	entries []Entry
}

func newSession(interp interpreter, logger *zap.Logger) *session {
	return &session{interp: interp, logger: logger, now: time.Now}
}

// Run interprets source and appends the outcome. Blank sources are ignored.
func (s *session) Run(ctx context.Context, source string) (Entry, bool) {
	if isBlank(source) {
		return Entry{}, false
	}

	out, err := s.interp.InterpretJSON(ctx, source)
	return s.Record(out, err), true
}

// Record appends the outcome of a run that happened elsewhere.
func (s *session) Record(out string, err error) Entry {
	e := Entry{ID: uuid.New(), Level: LevelResult, Message: out}
	if err != nil {
		e.Level = LevelError
		e.Message = err.Error()
		s.logger.Debug("program failed", zap.Stringer("entry", e.ID), zap.Error(err))
	}
	e.Time = s.now()
	s.entries = append(s.entries, e)
	return e
}

// Entries returns the log, oldest first.
func (s *session) Entries() []Entry {
	return s.entries
}

// Clear empties the log.
func (s *session) Clear() {
	s.entries = nil
}

func isBlank(s string) bool {
	for _, c := range s {
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return false
		}
	}
	return true
}
