package tenant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeDatabaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		expect      string
		expectError bool
	}{
		{
			name:   "already clean",
			input:  "clinic_sunrise",
			expect: "clinic_sunrise",
		},
		{
			name:   "trims and lowercases",
			input:  "  Clinic_Sunrise ",
			expect: "clinic_sunrise",
		},
		{
			name:   "hyphen and digits kept",
			input:  "clinic-42",
			expect: "clinic-42",
		},
		{
			name:   "sql injection payload neutralized",
			input:  "clinic_1; DROP TABLE clinics--",
			expect: "clinic_1__drop_table_clinics--",
		},
		{
			name:   "path traversal neutralized",
			input:  "../../etc/passwd",
			expect: "______etc_passwd",
		},
		{
			name:   "spaces and quotes become underscores",
			input:  `clinic "main" branch`,
			expect: "clinic__main__branch",
		},
		{
			name:        "empty",
			input:       "   ",
			expectError: true,
		},
		{
			name:        "too long",
			input:       strings.Repeat("a", 64),
			expectError: true,
		},
		{
			name:        "only separators",
			input:       "___",
			expectError: true,
		},
		{
			name:        "only invalid runes",
			input:       "!!!***",
			expectError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SanitizeDatabaseName(tt.input)
			if tt.expectError {
				require.ErrorIs(t, err, ErrSanitizationRejected)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.expect, got)
		})
	}
}

func TestSanitizeDatabaseNameIsStable(t *testing.T) {
	t.Parallel()

	// Sanitizing its own output must be a fixed point, so the sanitized form
	// can be used as a cache key everywhere.
	first, err := SanitizeDatabaseName("Clinic Nr.7 / Downtown")
	require.NoError(t, err)

	second, err := SanitizeDatabaseName(first)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
