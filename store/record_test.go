package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain value", "Ada", "Ada"},
		{"leading whitespace", "  Ada", "Ada"},
		{"trailing whitespace", "Ada  ", "Ada"},
		{"both sides", "\t Ada \n", "Ada"},
		{"interior whitespace preserved", "Ada Lovelace", "Ada Lovelace"},
		{"empty", "", ""},
		{"whitespace only", "   \t\n", ""},
		{"unicode preserved", "Grażyna", "Grażyna"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeValue(tt.input))
		})
	}
}
