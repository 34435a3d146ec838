package dealstore

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	logpkg "dealfeed/internal/logger"
	"dealfeed/internal/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, allowReset bool) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFileStore(dir, allowReset, logpkg.NewLogger(logpkg.LevelOff, io.Discard))
	require.NoError(t, err)
	return fs, dir
}

func TestReadBootstrapsMissingFile(t *testing.T) {
	require := require.New(t)
	fs, dir := newTestStore(t, false)

	st := fs.Read(model.CountryUS)
	require.NotNil(st.Deals)
	require.Empty(st.Deals)
	require.NotNil(st.Reports)
	require.NotNil(st.Alerts)

	// Bootstrap persisted the empty document.
	_, err := os.Stat(filepath.Join(dir, "deals-US.json"))
	require.NoError(err)
}

func TestReadDegradesOnCorruptFile(t *testing.T) {
	require := require.New(t)
	fs, dir := newTestStore(t, false)

	require.NoError(os.WriteFile(filepath.Join(dir, "deals-CA.json"), []byte("{not json"), 0o644))

	st := fs.Read(model.CountryCA)
	require.Empty(st.Deals)
	require.NotNil(st.Deals)
}

func TestWriteRejectsEmptyOverwrite(t *testing.T) {
	require := require.New(t)
	fs, _ := newTestStore(t, false)

	var st model.Store
	st.Normalize()
	for i := 0; i < 5; i++ {
		st.Deals = append(st.Deals, model.Deal{
			ID:     "d" + strconv.Itoa(i),
			Title:  "Deal",
			URL:    "https://shop.example.com/p/" + strconv.Itoa(i),
			Status: model.StatusApproved,
		})
	}
	require.NoError(fs.Write(model.CountryCA, st))

	var empty model.Store
	err := fs.Write(model.CountryCA, empty)
	require.Error(err)
	require.ErrorIs(err, ErrEmptyOverwrite)

	// The persisted deals survive the rejected write.
	got := fs.Read(model.CountryCA)
	require.Len(got.Deals, 5)
}

func TestWriteCreatesBackup(t *testing.T) {
	require := require.New(t)
	fs, dir := newTestStore(t, false)

	var st model.Store
	st.Deals = []model.Deal{{ID: "d1", Title: "First", URL: "https://shop.example.com/p/1"}}
	require.NoError(fs.Write(model.CountryCA, st))

	st.Deals = append(st.Deals, model.Deal{ID: "d2", Title: "Second", URL: "https://shop.example.com/p/2"})
	require.NoError(fs.Write(model.CountryCA, st))

	bs, err := os.ReadFile(filepath.Join(dir, "deals-CA.json.bak"))
	require.NoError(err)

	var bak model.Store
	require.NoError(json.Unmarshal(bs, &bak))
	require.Len(bak.Deals, 1, "backup must hold the previous document")
}

func TestMutateNoChangeSkipsWrite(t *testing.T) {
	require := require.New(t)
	fs, dir := newTestStore(t, false)

	var st model.Store
	st.Deals = []model.Deal{{ID: "d1", Title: "Deal", URL: "https://shop.example.com/p/1"}}
	require.NoError(fs.Write(model.CountryCA, st))

	path := filepath.Join(dir, "deals-CA.json")
	before, err := os.Stat(path)
	require.NoError(err)

	require.NoError(fs.Mutate(model.CountryCA, func(st *model.Store) error {
		return ErrNoChange
	}))

	after, err := os.Stat(path)
	require.NoError(err)
	require.Equal(before.ModTime(), after.ModTime())

	wantErr := errors.New("boom")
	err = fs.Mutate(model.CountryCA, func(st *model.Store) error { return wantErr })
	require.ErrorIs(err, wantErr)
}

func TestUpsertIdempotence(t *testing.T) {
	require := require.New(t)
	fs, _ := newTestStore(t, false)

	incoming := []model.Deal{{
		SourceKey: "amazon:B08N5WRWNW",
		Title:     "Echo Dot",
		Price:     39.99,
		URL:       "https://www.amazon.ca/dp/B08N5WRWNW",
	}}

	res, err := fs.Upsert(model.CountryCA, incoming)
	require.NoError(err)
	require.Equal(1, res.Added)
	require.Equal(0, res.Updated)
	require.Equal(1, res.Total)

	first := fs.Read(model.CountryCA).Deals[0]
	require.NotEmpty(first.ID)
	require.Equal(model.StatusApproved, first.Status, "trusted ingestion defaults to approved")
	require.Equal("Other", first.Category)
	require.Equal(model.CountryCA, first.Country)

	// Same batch again: updates in place, no new record, stable ID.
	incoming[0].Price = 34.99
	res, err = fs.Upsert(model.CountryCA, incoming)
	require.NoError(err)
	require.Equal(0, res.Added)
	require.Equal(1, res.Updated)
	require.Equal(1, res.Total)

	got := fs.Read(model.CountryCA)
	require.Len(got.Deals, 1)
	require.Equal(first.ID, got.Deals[0].ID)
	require.Equal(34.99, got.Deals[0].Price)
	require.Equal(first.CreatedAt.Unix(), got.Deals[0].CreatedAt.Unix())
}

func TestUpsertComputesDiscount(t *testing.T) {
	require := require.New(t)
	fs, _ := newTestStore(t, false)

	_, err := fs.Upsert(model.CountryUS, []model.Deal{{
		Title:         "Half Off",
		Price:         50,
		OriginalPrice: 100,
		URL:           "https://shop.example.com/p/half",
	}})
	require.NoError(err)

	got := fs.Read(model.CountryUS)
	require.Len(got.Deals, 1)
	require.Equal(50, got.Deals[0].DiscountPercent)
}

func TestUpsertEmptyBatchWritesNothing(t *testing.T) {
	require := require.New(t)
	fs, dir := newTestStore(t, false)

	var st model.Store
	st.Deals = []model.Deal{{ID: "d1", Title: "Deal", URL: "https://shop.example.com/p/1"}}
	require.NoError(fs.Write(model.CountryCA, st))

	path := filepath.Join(dir, "deals-CA.json")
	before, err := os.Stat(path)
	require.NoError(err)

	res, err := fs.Upsert(model.CountryCA, nil)
	require.NoError(err)
	require.Equal(0, res.Added)
	require.Equal(0, res.Updated)
	require.Equal(1, res.Total)

	after, err := os.Stat(path)
	require.NoError(err)
	require.Equal(before.ModTime(), after.ModTime())
}

func TestResetDisabled(t *testing.T) {
	require := require.New(t)
	fs, _ := newTestStore(t, false)

	var st model.Store
	st.Deals = []model.Deal{{ID: "d1", Title: "Deal", URL: "https://shop.example.com/p/1"}}
	require.NoError(fs.Write(model.CountryCA, st))

	require.ErrorIs(fs.Reset(model.CountryCA), ErrResetDisabled)
	require.Len(fs.Read(model.CountryCA).Deals, 1)
}

func TestResetEnabled(t *testing.T) {
	require := require.New(t)
	fs, _ := newTestStore(t, true)

	var st model.Store
	st.Deals = []model.Deal{{ID: "d1", Title: "Deal", URL: "https://shop.example.com/p/1"}}
	require.NoError(fs.Write(model.CountryCA, st))

	require.NoError(fs.Reset(model.CountryCA))
	require.Empty(fs.Read(model.CountryCA).Deals)
}

func TestMigrateLegacy(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	log := logpkg.NewLogger(logpkg.LevelOff, io.Discard)

	legacy := model.Store{Deals: []model.Deal{
		{ID: "d1", Title: "Old Deal", URL: "https://shop.example.com/p/1", Status: model.StatusApproved},
	}}
	bs, err := json.Marshal(legacy)
	require.NoError(err)
	require.NoError(os.WriteFile(filepath.Join(dir, "deals.json"), bs, 0o644))

	fs, err := NewFileStore(dir, false, log)
	require.NoError(err)

	got := fs.Read(model.CountryCA)
	require.Len(got.Deals, 1)
	require.Equal("Old Deal", got.Deals[0].Title)
	require.Equal(model.CountryCA, got.Deals[0].Country, "migration stamps the partition country")
}

func TestMigrateLegacyBareArrayLayout(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	ds := []model.Deal{{ID: "d1", Title: "Oldest Layout", URL: "https://shop.example.com/p/1"}}
	bs, err := json.Marshal(ds)
	require.NoError(err)
	require.NoError(os.WriteFile(filepath.Join(dir, "deals.json"), bs, 0o644))

	fs, err := NewFileStore(dir, false, logpkg.NewLogger(logpkg.LevelOff, io.Discard))
	require.NoError(err)

	got := fs.Read(model.CountryCA)
	require.Len(got.Deals, 1)
	require.Equal("Oldest Layout", got.Deals[0].Title)
}

func TestMigrateLegacyNeverOverwritesPopulatedPartition(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	log := logpkg.NewLogger(logpkg.LevelOff, io.Discard)

	current := model.Store{UpdatedAt: time.Now(), Deals: []model.Deal{
		{ID: "new", Title: "Current Deal", URL: "https://shop.example.com/p/new"},
	}}
	bs, err := json.Marshal(current)
	require.NoError(err)
	require.NoError(os.WriteFile(filepath.Join(dir, "deals-CA.json"), bs, 0o644))

	legacy := model.Store{Deals: []model.Deal{
		{ID: "old", Title: "Stale Deal", URL: "https://shop.example.com/p/old"},
	}}
	bs, err = json.Marshal(legacy)
	require.NoError(err)
	require.NoError(os.WriteFile(filepath.Join(dir, "deals.json"), bs, 0o644))

	fs, err := NewFileStore(dir, false, log)
	require.NoError(err)

	got := fs.Read(model.CountryCA)
	require.Len(got.Deals, 1)
	require.Equal("Current Deal", got.Deals[0].Title)
}
