package age

import (
	"strconv"
	"testing"
	"time"
)

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestFormatBuckets(t *testing.T) {
	cases := []struct {
		secs int64
		want string
	}{
		{0, "0s"},
		{1, "1s"},
		{59, "59s"},
		{60, "1m"},
		{119, "1m"},
		{3599, "59m"},
		{3600, "1h"},
		{3660, "1h1m"},
		{3661, "1h1m"},
		{86399, "23h59m"},
		{86400, "1d"},
		{90000, "1d1h"},
		{86400*3 + 1800, "3d"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			ev := base.Add(-time.Duration(tc.secs) * time.Second)
			if got := Format(ev, base); got != tc.want {
				t.Fatalf("Format(%ds) = %q, want %q", tc.secs, got, tc.want)
			}
		})
	}
}

func TestFormatSecondsRange(t *testing.T) {
	for s := 0; s < 60; s++ {
		ev := base.Add(-time.Duration(s) * time.Second)
		if got, want := Format(ev, base), strconv.Itoa(s)+"s"; got != want {
			t.Fatalf("Format(%ds) = %q, want %q", s, got, want)
		}
	}
}

func TestFormatFloorsSubSecond(t *testing.T) {
	ev := base.Add(-59*time.Second - 999*time.Millisecond)
	if got := Format(ev, base); got != "59s" {
		t.Fatalf("expected floor to 59s, got %q", got)
	}
}

func TestFormatNegativeDelta(t *testing.T) {
	for _, secs := range []int64{5, 61, 3661, 90000} {
		d := time.Duration(secs) * time.Second
		past := Format(base.Add(-d), base)
		future := Format(base.Add(d), base)
		if past != future {
			t.Fatalf("future delta %v: got %q, want %q", d, future, past)
		}
	}
}

func TestFormatIgnoresZones(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	ev := base.Add(-90 * time.Second).In(tokyo)
	if got := Format(ev, base); got != "1m" {
		t.Fatalf("zone offset leaked into delta: %q", got)
	}
}

func TestFormatCoarse(t *testing.T) {
	cases := map[int64]string{
		30:    "30s",
		3661:  "1h",
		90000: "1d",
		600:   "10m",
	}
	for secs, want := range cases {
		ev := base.Add(-time.Duration(secs) * time.Second)
		if got := FormatCoarse(ev, base); got != want {
			t.Fatalf("FormatCoarse(%ds) = %q, want %q", secs, got, want)
		}
	}
}
