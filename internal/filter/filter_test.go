package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		sender string
		want   Institution
	}{
		{"MPESA", InstitutionMobileMoney},
		{"m-pesa", InstitutionMobileMoney},
		{"AirtelMoney", InstitutionMobileMoney},
		{"KCB", InstitutionBank},
		{"Equity Bank", InstitutionBank},
		{"VISA", InstitutionCard},
		{"MAMA MBOGA", InstitutionUnknown},
		{"", InstitutionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.sender, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sender))
		})
	}
}

func TestClassify_MobileMoneyFirst(t *testing.T) {
	f := New(AllowList{
		MobileMoney: []string{"MPESA"},
		Bank:        []string{"PESA"},
	})
	assert.Equal(t, InstitutionMobileMoney, f.Classify("MPESA"))
	assert.Equal(t, InstitutionBank, f.Classify("PESALINK"))
}

func TestFilter_ShouldProcess(t *testing.T) {
	f := New(DefaultAllowList())

	assert.True(t, f.ShouldProcess("MPESA", "anything at all"))
	assert.True(t, f.ShouldProcess("+254700000000", "QJK3ABCD12 Confirmed. Ksh 500.00 sent to JOHN"))
	assert.False(t, f.ShouldProcess("+254700000000", "See you at 5pm"))
	assert.False(t, f.ShouldProcess("PROMO", "Win big this weekend"))
}

func TestFilter_IsFailedTransaction(t *testing.T) {
	f := New(DefaultAllowList())

	assert.True(t, f.IsFailedTransaction("Failed. You do not have sufficient funds"))
	assert.True(t, f.IsFailedTransaction("Transaction declined by issuer"))
	assert.True(t, f.IsFailedTransaction("You entered a WRONG PIN"))
	assert.True(t, f.IsFailedTransaction("Request timed out"))
	assert.False(t, f.IsFailedTransaction("QJK3ABCD12 Confirmed. Ksh 500.00 sent to JOHN DOE"))
}

func TestInstitution_Channel(t *testing.T) {
	ch, ok := InstitutionBank.Channel()
	assert.True(t, ok)
	assert.Equal(t, model.SourceBank, ch)

	_, ok = InstitutionUnknown.Channel()
	assert.False(t, ok)
}

func TestLoadAllowList(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		list, err := LoadAllowList("")
		require.NoError(t, err)
		assert.Equal(t, DefaultAllowList(), list)
	})

	t.Run("file entries extend defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "allow.yaml")
		content := "bank:\n  - GULF AFRICAN\n  - kcb\nfailed_keywords:\n  - reversed\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		list, err := LoadAllowList(path)
		require.NoError(t, err)
		assert.Contains(t, list.Bank, "GULF AFRICAN")
		assert.Len(t, list.Bank, len(DefaultAllowList().Bank)+1)

		f := New(list)
		assert.Equal(t, InstitutionBank, f.Classify("Gulf African Bank"))
		assert.True(t, f.IsFailedTransaction("Payment reversed"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadAllowList(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("bank: [unterminated"), 0o600))
		_, err := LoadAllowList(path)
		assert.Error(t, err)
	})
}
