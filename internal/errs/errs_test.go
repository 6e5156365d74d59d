package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("create order: %w", InsufficientStock("TRN-HEX-10", 50, 45))

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestErrorMessageNamesEntity(t *testing.T) {
	err := InvalidTransition("order", "ORD-2026-000001", "RECEIVED", "deliver")
	assert.Equal(t, "invalid transition: order ORD-2026-000001 transition=deliver from=RECEIVED", err.Error())

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "ORD-2026-000001", e.ID)
}
