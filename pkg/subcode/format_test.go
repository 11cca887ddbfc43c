package subcode_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

func TestValidateFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"balanced", strings.Repeat("aB", 8) + strings.Repeat("12", 8), true},
		{"shuffled", "a1B2c3D4e5F6g7H8i9J0k1L2m3N4o5P6", true},
		{"more letters than needed is not possible at length 32", strings.Repeat("a", 17) + strings.Repeat("1", 15), false},
		{"too short", strings.Repeat("a", 16) + strings.Repeat("1", 15), false},
		{"too long", strings.Repeat("a", 16) + strings.Repeat("1", 17), false},
		{"only digits", strings.Repeat("0", 32), false},
		{"only letters", strings.Repeat("Z", 32), false},
		{"contains dash", strings.Repeat("a", 16) + strings.Repeat("1", 15) + "-", false},
		{"non ascii letter", strings.Repeat("a", 15) + "é" + strings.Repeat("1", 15), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, subcode.ValidateFormat(tt.code))
		})
	}
}

func TestWellFormed(t *testing.T) {
	t.Parallel()

	assert.True(t, subcode.WellFormed(strings.Repeat("0", 32)))
	assert.True(t, subcode.WellFormed(strings.Repeat("x", 32)))
	assert.False(t, subcode.WellFormed(strings.Repeat("0", 31)))
	assert.False(t, subcode.WellFormed(strings.Repeat("0", 31)+"_"))
	assert.False(t, subcode.WellFormed(""))
}

func TestFormatForDisplay(t *testing.T) {
	t.Parallel()

	t.Run("groups of four", func(t *testing.T) {
		t.Parallel()

		code := "AbC123DeF456GhI789JkL012MnO345Pq"
		require.Len(t, code, 32)

		assert.Equal(t, "AbC1-23De-F456-GhI7-89Jk-L012-MnO3-45Pq", subcode.FormatForDisplay(code))
	})

	t.Run("leaves other lengths untouched", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "short", subcode.FormatForDisplay("short"))
	})

	t.Run("normalize reverses display formatting", func(t *testing.T) {
		t.Parallel()

		code, err := subcode.Generate()
		require.NoError(t, err)

		assert.Equal(t, code, subcode.Normalize(subcode.FormatForDisplay(code)))
		assert.Equal(t, code, subcode.Normalize("  "+code+"\n"))
	})
}

func TestMask(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AbC1…45Pq", subcode.Mask("AbC123DeF456GhI789JkL012MnO345Pq"))
	assert.Equal(t, "****", subcode.Mask("abc"))
}
