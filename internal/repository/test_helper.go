package repository

import (
	"testing"

	"github.com/nimasrn/sms-ledger/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

// Entities lists every table the ledger owns, in creation order.
func Entities() []any {
	return []any{
		&RawMessageEntity{},
		&TransactionEntity{},
		&LinkEntity{},
		&DebtEntity{},
		&DebtPaymentEntity{},
	}
}

// NewTestDB opens an in-memory sqlite database with the ledger schema and
// wraps it in a pg.DB. Exported for service and handler tests.
func NewTestDB(t testing.TB) *pg.DB {
	return setupTestDB(t).DB
}

func setupTestDB(t testing.TB) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// each pooled connection would get its own empty in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(Entities()...)
	require.NoError(t, err)

	return &testDB{
		DB:    pg.New(db, db),
		rawDB: db,
	}
}
