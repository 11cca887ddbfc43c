package mongo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/kiosk/pkg/mongo"
)

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()

	_, err := mongo.New(t.Context(), mongo.Config{})
	assert.ErrorIs(t, err, mongo.ErrEmptyConnectionURL)
}
