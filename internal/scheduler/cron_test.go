package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tripharvest/internal/errors"
)

func TestCronParserValidate(t *testing.T) {
	p := NewCronParser()

	assert.NoError(t, p.Validate("0 3 * * *"))
	assert.NoError(t, p.Validate("*/15 * * * *"))

	for _, expr := range []string{"", "not a cron", "61 3 * * *", "0 3 * *"} {
		err := p.Validate(expr)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCron, "expr=%q", expr)
	}
}

func TestCronParserNext(t *testing.T) {
	p := NewCronParser()
	from := time.Date(2026, time.March, 10, 2, 0, 0, 0, time.UTC)

	next, err := p.Next("0 3 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 10, 3, 0, 0, 0, time.UTC), next)

	next, err = p.Next("0 3 * * *", next)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 11, 3, 0, 0, 0, time.UTC), next)
}
