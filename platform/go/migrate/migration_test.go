package migrate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		migName  string
		expectTS int64
		expectOK bool
	}{
		{
			name:     "standard name",
			migName:  "create_users_table_20240105093500",
			expectTS: 20240105093500,
			expectOK: true,
		},
		{
			name:     "digits only",
			migName:  "20240101000000",
			expectTS: 20240101000000,
			expectOK: true,
		},
		{
			name:     "digits in the middle are not the timestamp",
			migName:  "add_2fa_columns_20240301120000",
			expectTS: 20240301120000,
			expectOK: true,
		},
		{
			name:     "no trailing digits",
			migName:  "create_users_table",
			expectOK: false,
		},
		{
			name:     "trailing digits after non-digit suffix",
			migName:  "create_users_20240101_fix",
			expectOK: false,
		},
		{
			name:     "overflows int64",
			migName:  "huge_99999999999999999999999999",
			expectOK: false,
		},
		{
			name:     "empty name",
			migName:  "",
			expectOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts, ok := Migration{Name: tt.migName}.Timestamp()
			require.Equal(t, tt.expectOK, ok)
			if tt.expectOK {
				require.Equal(t, tt.expectTS, ts)
			}
		})
	}
}
