package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/stealth-scraper/internal/models"
)

func TestWriteAndRead(t *testing.T) {
	price := 51.77
	rating := 3.0
	snapshot := models.NewSnapshot("books_toscrape", []models.Product{
		{
			ID:        "books_toscrape_1",
			Name:      "A Light in the Attic",
			Price:     &price,
			PriceRaw:  "£51.77",
			Rating:    &rating,
			RatingRaw: "star-rating Three",
			Stock:     models.StockInfo{InStock: true},
			Source:    "books_toscrape",
			ScrapedAt: time.Now(),
		},
	})

	path := filepath.Join(t.TempDir(), "out", "products_raw.json")
	store := NewSnapshotStore()

	require.NoError(t, store.Write(path, snapshot))

	loaded, err := store.Read(path)
	require.NoError(t, err)

	assert.Equal(t, "books_toscrape", loaded.Metadata.Target)
	assert.Equal(t, 1, loaded.Metadata.TotalProducts)
	require.Len(t, loaded.Products, 1)
	require.NotNil(t, loaded.Products[0].Price)
	assert.InDelta(t, 51.77, *loaded.Products[0].Price, 0.0001)
	assert.Equal(t, "£51.77", loaded.Products[0].PriceRaw)
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	store := NewSnapshotStore()
	require.NoError(t, store.Write(path, models.NewSnapshot("t", nil)))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestReadMissingFile(t *testing.T) {
	store := NewSnapshotStore()
	_, err := store.Read(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
