package shutdown

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestRunKeepsGoingAfterFailure(t *testing.T) {
	var order []string
	errFirst := errors.New("listener")
	err := Run(context.Background(),
		Step{Name: "rest", Fn: func(context.Context) error { order = append(order, "rest"); return errFirst }},
		Step{Name: "skipped"},
		Step{Name: "store", Fn: func(context.Context) error { order = append(order, "store"); return errors.New("later") }},
	)
	assert.True(t, errors.Is(err, errFirst))
	assert.Equal(t, []string{"rest", "store"}, order)
}
