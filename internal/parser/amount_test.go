package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1,234.56", 123456, false},
		{"500", 50000, false},
		{"0.00", 0, false},
		{"12.345", 1235, false},
		{"0.005", 1, false},
		{"1,000,000.10", 100000010, false},
		{"1,23", 0, true},
		{"1,23,4.00", 0, true},
		{"-5.00", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"99999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "1234.56", FormatMinor(123456))
	assert.Equal(t, "0.07", FormatMinor(7))
}

func TestParseMobileDate(t *testing.T) {
	got, err := ParseMobileDate("4/11/26", "12:30 AM", eat)
	require.NoError(t, err)
	assert.True(t, time.Date(2026, time.November, 4, 0, 30, 0, 0, eat).Equal(got))

	got, err = ParseMobileDate("4/11/26", "12:30PM", eat)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Hour())

	_, err = ParseMobileDate("4/11/26", "13:00 PM", eat)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseMobileDate("4/11", "1:00 PM", eat)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseDueDate(t *testing.T) {
	got, err := ParseDueDate("01/12/26", eat)
	require.NoError(t, err)
	assert.True(t, time.Date(2026, time.December, 1, 23, 59, 59, 0, eat).Equal(got))
}

func TestParseBankDateTime(t *testing.T) {
	got, err := ParseBankDateTime("05-11-2026 14:20", eat)
	require.NoError(t, err)
	assert.True(t, time.Date(2026, time.November, 5, 14, 20, 0, 0, eat).Equal(got))

	_, err = ParseBankDateTime("2026-11-05 14:20", eat)
	assert.ErrorIs(t, err, ErrInvalidDate)
}
