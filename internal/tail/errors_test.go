package tail

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/loykin/trailtail/internal/event"
)

func TestSourceError(t *testing.T) {
	cause := errors.New("throttled")
	err := &SourceError{Op: "lookup", Err: cause}
	assert.Equal(t, "source lookup: throttled", err.Error())
	assert.True(t, err.Temporary())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "source: throttled", (&SourceError{Err: cause}).Error())
}

func TestConfigError(t *testing.T) {
	cause := errors.New("profile not found")
	err := fmt.Errorf("startup: %w", &ConfigError{Op: "profile", Err: cause})
	assert.True(t, IsConfig(err))
	assert.False(t, IsTemporary(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "startup: configuration profile: profile not found", err.Error())
}

func TestClassify(t *testing.T) {
	plain := classify("lookup", context.DeadlineExceeded)
	assert.True(t, IsTemporary(plain))
	assert.ErrorIs(t, plain, context.DeadlineExceeded)

	cfg := &ConfigError{Op: "lookup", Err: errors.New("expired token")}
	wrapped := classify("lookup", cfg)
	assert.True(t, IsTemporary(wrapped))
	assert.ErrorIs(t, wrapped, cfg)

	src := &SourceError{Op: "page", Err: errors.New("reset")}
	assert.Same(t, src, classify("lookup", src))
}

func TestOrder(t *testing.T) {
	a := event.Event{ID: "a", Time: t0}
	b := event.Event{ID: "b", Time: t0}
	c := event.Event{ID: "c", Time: t0.Add(time.Second)}
	d := event.Event{ID: "d", Time: t0.Add(2 * time.Second)}

	ids := func(evs []event.Event) []string {
		var out []string
		for _, e := range evs {
			out = append(out, e.ID)
		}
		return out
	}

	newestFirst := []event.Event{d, c, b, a}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(Order(newestFirst)))
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids(newestFirst), "input must not be modified")

	shuffled := []event.Event{c, b, d, a}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(Order(shuffled)))

	assert.Empty(t, Order(nil))
}
