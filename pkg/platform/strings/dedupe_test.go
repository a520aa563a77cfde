package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{
			name:     "document types keep first-seen order",
			input:    []string{"passport", " utility_bill ", "passport", "bank_statement"},
			expected: []string{"passport", "utility_bill", "bank_statement"},
		},
		{
			name:     "blank entries dropped",
			input:    []string{"", "  ", "passport", "\t"},
			expected: []string{"passport"},
		},
		{
			name:     "only blanks",
			input:    []string{" ", ""},
			expected: []string{},
		},
		{
			name:     "case-sensitive",
			input:    []string{"Passport", "passport"},
			expected: []string{"Passport", "passport"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, SplitList("k1:9092, k2:9092,,k1:9092"))
	assert.Equal(t, []string{}, SplitList(""))
}
