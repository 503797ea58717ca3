package main

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInterpreter struct {
	results map[string]string
	calls   int
}

func (f *fakeInterpreter) InterpretJSON(_ context.Context, source string) (string, error) {
	f.calls++
	if out, ok := f.results[source]; ok {
		return out, nil
	}
	return "", stderrors.New("Unexpected token '" + source[:1] + "'.")
}

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 14, 3, 9, 0, time.UTC)
	return func() time.Time { return t0 }
}

func TestSession_Run(t *testing.T) {
	fi := &fakeInterpreter{results: map[string]string{"1 + 1": "2"}}
	s := newSession(fi, zap.NewNop())
	s.now = fixedClock()

	e, ok := s.Run(context.Background(), "1 + 1")
	require.True(t, ok)
	assert.Equal(t, LevelResult, e.Level)
	assert.Equal(t, "14:03:09: 2", e.String())
	assert.NotEqual(t, uuid.Nil, e.ID)

	e, ok = s.Run(context.Background(), "$")
	require.True(t, ok)
	assert.Equal(t, LevelError, e.Level)
	assert.Equal(t, "14:03:09: Unexpected token '$'.", e.String())

	require.Len(t, s.Entries(), 2)
	assert.NotEqual(t, s.Entries()[0].ID, s.Entries()[1].ID)
}

func TestSession_BlankSourceSkipped(t *testing.T) {
	fi := &fakeInterpreter{}
	s := newSession(fi, zap.NewNop())

	for _, src := range []string{"", "   ", "\n\t\r\n"} {
		_, ok := s.Run(context.Background(), src)
		assert.False(t, ok, "%q", src)
	}
	assert.Zero(t, fi.calls)
	assert.Empty(t, s.Entries())
}

func TestSession_RecordAndClear(t *testing.T) {
	s := newSession(&fakeInterpreter{}, zap.NewNop())
	s.now = fixedClock()

	s.Record(`{"a":1}`, nil)
	e := s.Record("", stderrors.New("boom"))
	assert.Equal(t, "boom", e.Message)
	assert.Len(t, s.Entries(), 2)

	s.Clear()
	assert.Empty(t, s.Entries())
}
