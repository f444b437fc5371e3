package trailtail

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	events []Event
	cancel context.CancelFunc
	calls  int
}

func (s *stubSource) LookupEvents(_ context.Context, start time.Time) ([]Event, error) {
	s.calls++
	if s.calls > 1 {
		s.cancel()
		return nil, nil
	}
	var out []Event
	for _, e := range s.events {
		if !e.Time.Before(start) {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestTailFacade(t *testing.T) {
	now := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &stubSource{cancel: cancel, events: []Event{
		{ID: "b", Time: now.Add(-2 * time.Second), Source: "ec2.amazonaws.com", Action: "RunInstances", Actor: "ci"},
		{ID: "a", Time: now.Add(-4 * time.Second), Source: "s3.amazonaws.com", Action: "PutObject", Actor: "ci"},
	}}

	var out bytes.Buffer
	tl := NewTail(src, &out, Options{
		Interval: time.Millisecond,
		Lookback: time.Minute,
		Now:      func() time.Time { return now },
	}, WithLocation(time.UTC), WithColumns(DefaultColumns))

	require.NoError(t, tl.Run(ctx))
	require.NoError(t, tl.Stopped())

	assert.Equal(t, 2, tl.Written())
	assert.NotEmpty(t, tl.SessionID())
	assert.Equal(t, State("stopped"), tl.Snapshot().State)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "PutObject")
	assert.Contains(t, lines[1], "RunInstances")
	assert.Equal(t, "Stopped", lines[len(lines)-1])
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsTemporary(&SourceError{Op: "lookup", Err: errors.New("timeout")}))
	assert.True(t, IsConfig(&ConfigError{Op: "region", Err: errors.New("missing")}))
	assert.False(t, IsConfig(errors.New("plain")))
}

func TestLoadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "trailtail.toml")
	require.NoError(t, os.WriteFile(p, []byte("[tail]\ninterval = \"3s\"\n"), 0o644))

	c, err := LoadConfig(NewConfigViper(), p)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.TailOptions().Interval)

	require.NoError(t, os.WriteFile(p, []byte("[tail]\ninterval = \"0s\"\n"), 0o644))
	_, err = LoadConfig(NewConfigViper(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tail.interval")
}

func TestArchiveFacade(t *testing.T) {
	s, err := NewArchive(nil)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, CloseArchive(s))

	s, err = NewArchive([]string{"sqlite://:memory:"})
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NoError(t, s.Send(context.Background(), ArchiveEntry{
		SessionID: "s", EventID: "e", EventTime: time.Now(), Source: "iam.amazonaws.com", Action: "CreateRole",
	}))
	assert.NoError(t, CloseArchive(s))
}
