package backup_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/backup"
)

func TestFileStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := backup.NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	rec := &domain.BackupRecord{
		ReferencePrice:   30000.5,
		PriceSinceLastTx: 29000,
		Lots:             []domain.PurchaseLot{domain.NewPurchaseLot(0.001, 29000)},
	}
	require.NoError(t, store.Save(ctx, "BTC", rec))

	got, err := store.Load(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	data, err := os.ReadFile(filepath.Join(dir, "BTC.txt"))
	require.NoError(t, err)
	assert.Equal(t, backup.Marshal(rec), data)

	// Overwrite leaves no temp files behind.
	rec.ReferencePrice = 31000
	require.NoError(t, store.Save(ctx, "BTC", rec))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC"}, ids)
}

func TestFileStore_LoadMissing(t *testing.T) {
	store, err := backup.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "ETH")
	assert.ErrorIs(t, err, domain.ErrBackupNotFound)
}

func TestFileStore_LoadMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ETH.txt"), []byte("Reference Price: 1\n"), 0o644))
	store, err := backup.NewFileStore(dir)
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "ETH")
	assert.ErrorIs(t, err, backup.ErrMalformedRecord)
}

func TestNewFileStore_RequiresDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := backup.NewFileStore(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = backup.NewFileStore(file)
	assert.Error(t, err)
}
