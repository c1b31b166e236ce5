package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eat = time.FixedZone("EAT", 3*60*60)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		err   bool
	}{
		{"unix millis", "1762779600000", time.Date(2025, time.November, 10, 13, 0, 0, 0, time.UTC), false},
		{"rfc3339", "2026-11-10T16:00:00+03:00", time.Date(2026, time.November, 10, 13, 0, 0, 0, time.UTC), false},
		{"local datetime", "2026-11-10 16:00:00", time.Date(2026, time.November, 10, 16, 0, 0, 0, eat), false},
		{"day first", "10/11/2026 16:00", time.Date(2026, time.November, 10, 16, 0, 0, 0, eat), false},
		{"empty", " ", time.Time{}, true},
		{"garbage", "yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input, eat)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestReadCSV(t *testing.T) {
	data := "address,body,date\n" +
		"MPESA,\"QJK3ABCD22 Confirmed. Ksh 500.00 sent to JOHN DOE\",2026-11-10 16:00:00\n" +
		"KCB,\"multi\nline\",1762779600000\n"

	msgs, err := ReadCSV(strings.NewReader(data), eat)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "MPESA", msgs[0].Sender)
	assert.Equal(t, model.ChannelImport, msgs[0].Channel)
	assert.Equal(t, "multi\nline", msgs[1].Body)

	t.Run("bad timestamp names the row", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("address,body,date\nMPESA,hi,nope\n"), eat)
		assert.ErrorContains(t, err, "row 2")
	})

	t.Run("missing body", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("address,body,date\nMPESA,,1762779600000\n"), eat)
		assert.ErrorContains(t, err, "body is required")
	})
}

func TestReadJSON(t *testing.T) {
	data := `[{"address":"MPESA","body":"QJK3ABCD17 Confirmed.","date":"1762779600000"}]`

	msgs, err := ReadJSON(strings.NewReader(data), eat)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "QJK3ABCD17 Confirmed.", msgs[0].Body)

	_, err = ReadJSON(strings.NewReader(`{"address":1}`), eat)
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "backup.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("address,body,date\nMPESA,hello,1762779600000\n"), 0o600))

	msgs, err := ReadFile(csvPath, eat)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	txtPath := filepath.Join(dir, "backup.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o600))
	_, err = ReadFile(txtPath, eat)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ReadFile(filepath.Join(dir, "missing.json"), eat)
	assert.Error(t, err)
}
