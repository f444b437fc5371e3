package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2024, 2, 3, 14, 5, 6, 0, time.UTC)

func TestLineLayout(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithLocation(time.UTC))
	l := r.Line("3m", ts, "ec2.amazonaws.com", "RunInstances", "alice", " -> i-1")
	require.NoError(t, r.Write(l))

	want := "    3m 14:05:06 ec2             RunInstances                   alice              -> i-1\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 1, r.Written())
}

func TestLineDefaultsActorAndClipsIt(t *testing.T) {
	r := New(&bytes.Buffer{}, WithLocation(time.UTC))
	assert.Equal(t, SystemActor, r.Line("0s", ts, "s3", "GetObject", "", "").Actor)

	l := r.Line("0s", ts, "s3", "GetObject", "AssumedRoleSession-abcdefghij", "")
	assert.Equal(t, "AssumedRoleSess", l.Actor)
}

func TestLineUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	r := New(&bytes.Buffer{}, WithLocation(tokyo))
	assert.Equal(t, "23:05:06", r.Line("1s", ts, "x", "y", "z", "").Clock)
}

func TestSourceSuffix(t *testing.T) {
	r := New(&bytes.Buffer{}, WithSourceSuffix(""))
	assert.Equal(t, "ec2.amazonaws.com", r.Line("1s", ts, "ec2.amazonaws.com", "y", "z", "").Source)

	r = New(&bytes.Buffer{}, WithSourceSuffix(".example.org"))
	assert.Equal(t, "audit", r.Line("1s", ts, "audit.example.org", "y", "z", "").Source)
}

func TestCustomColumnsStableAcrossLines(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithLocation(time.UTC), WithColumns(Columns{Age: 4, Source: 6, Action: 8, Actor: 6}))
	require.NoError(t, r.Write(r.Line("1s", ts, "ec2", "Run", "bob", "")))
	require.NoError(t, r.Write(r.Line("12m", ts, "iam", "Delete", "carol", " ERROR: x")))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "  1s 14:05:06 ec2    Run      bob   ", lines[0])
	assert.Equal(t, " 12m 14:05:06 iam    Delete   carol  ERROR: x", lines[1])
	assert.Equal(t, 15, r.Columns().ActorMax)
}

func TestBannerNoticeStopped(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	require.NoError(t, r.Banner("CloudTrail Live Stream", "profile=dev region=eu-west-1"))
	require.NoError(t, r.Notice("poll failed: %v", errors.New("timeout")))
	require.NoError(t, r.Stopped())

	out := buf.String()
	assert.Contains(t, out, "CloudTrail Live Stream - Press Ctrl+C to stop\n")
	assert.Contains(t, out, "profile=dev region=eu-west-1\n")
	assert.Contains(t, out, "Waiting for new events...\n")
	assert.Contains(t, out, strings.Repeat("-", 70)+"\n")
	assert.Contains(t, out, "! poll failed: timeout\n")
	assert.True(t, strings.HasSuffix(out, "\nStopped\n"))
	assert.Equal(t, 0, r.Written())
}

type countingWriter struct{ calls int }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.calls++
	return len(p), nil
}

func TestWriteIsSingleCall(t *testing.T) {
	w := &countingWriter{}
	r := New(w)
	require.NoError(t, r.Write(r.Line("1s", ts, "a", "b", "c", " -> d")))
	assert.Equal(t, 1, w.calls)
}
