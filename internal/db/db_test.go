package db

import (
	"context"
	"sync"
	"testing"

	"gov-monitoring/internal/config"
	"gov-monitoring/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type proposalStore interface {
	CreateSchema(ctx context.Context) error
	IsDuplicate(ctx context.Context, network string, id uint64) (bool, error)
	Insert(ctx context.Context, p models.Proposal) error
	MarkVoted(ctx context.Context, network string, id uint64) error
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: silentLogger()})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// one connection, otherwise every connection gets its own in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

func stores(t *testing.T) map[string]proposalStore {
	return map[string]proposalStore{
		"gorm":   NewStore(openSQLite(t)),
		"memory": NewMemoryStore(),
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateSchema(ctx))
			require.NoError(t, s.CreateSchema(ctx), "schema creation must be idempotent")

			dup, err := s.IsDuplicate(ctx, "cosmos", 7)
			require.NoError(t, err)
			require.False(t, dup)

			p := models.Proposal{Network: "cosmos", ProposalID: 7, Title: "Raise staking cap", VotingEndTime: 1735689600, DiscoveredAt: 100}
			require.NoError(t, s.Insert(ctx, p))

			dup, err = s.IsDuplicate(ctx, "cosmos", 7)
			require.NoError(t, err)
			require.True(t, dup)

			dup, err = s.IsDuplicate(ctx, "stride", 7)
			require.NoError(t, err)
			require.False(t, dup, "identity is (network, id)")

			p.Title = "changed"
			require.NoError(t, s.Insert(ctx, p), "second insert is a no-op")

			require.NoError(t, s.MarkVoted(ctx, "cosmos", 7))
			require.NoError(t, s.MarkVoted(ctx, "cosmos", 99), "unknown proposals are ignored")
		})
	}
}

func TestGormStoreRows(t *testing.T) {
	ctx := context.Background()
	gdb := openSQLite(t)
	s := NewStore(gdb)
	require.NoError(t, s.CreateSchema(ctx))

	require.NoError(t, s.Insert(ctx, models.Proposal{Network: "cosmos", ProposalID: 7, Title: "first"}))
	require.NoError(t, s.Insert(ctx, models.Proposal{Network: "cosmos", ProposalID: 7, Title: "second"}))
	require.NoError(t, s.MarkVoted(ctx, "cosmos", 7))

	var rows []models.Proposal
	require.NoError(t, gdb.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, "first", rows[0].Title)
	require.True(t, rows[0].Voted)
	require.Equal(t, 0, rows[0].ReminderStage)
}

func TestMemoryStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Insert(ctx, models.Proposal{Network: "cosmos", ProposalID: uint64(i % 10)})
			_ = s.MarkVoted(ctx, "cosmos", uint64(i%5))
			_, _ = s.IsDuplicate(ctx, "cosmos", uint64(i))
		}(i)
	}
	wg.Wait()

	all := s.All()
	require.Len(t, all, 10)
	for i, p := range all {
		require.Equal(t, uint64(i), p.ProposalID)
	}
}

func TestOpenWithoutDatabase(t *testing.T) {
	gdb, err := Open(config.Config{})
	require.NoError(t, err)
	require.Nil(t, gdb)
	require.NoError(t, AutoMigrate(nil))

	_, err = Open(config.Config{DBDialect: "mysql", DBDsn: "x"})
	require.ErrorContains(t, err, "unsupported")
}
