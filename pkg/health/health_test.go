package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticChecker struct {
	name string
	err  error
}

func (c staticChecker) Name() string { return c.name }

func (c staticChecker) Check(ctx context.Context) error { return c.err }

func TestCheckerRegistry(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{name: "no checkers", want: StatusOK},
		{name: "all passing", checkers: []Checker{staticChecker{name: "a"}}, want: StatusOK},
		{
			name:     "one failing",
			checkers: []Checker{staticChecker{name: "a"}, staticChecker{name: "b", err: errors.New("down")}},
			want:     StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			for _, c := range tt.checkers {
				r.Register(c)
			}
			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, len(tt.checkers))
		})
	}
}

func TestDrainChecker(t *testing.T) {
	c := NewDrainChecker()
	assert.NoError(t, c.Check(context.Background()))
	assert.False(t, c.Draining())

	c.SetDraining()
	assert.ErrorIs(t, c.Check(context.Background()), ErrDraining)
	assert.True(t, c.Draining())
}
