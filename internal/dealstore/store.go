package dealstore

import (
	"dealfeed/internal/model"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const legacyFileName = "deals.json"

var (
	// ErrEmptyOverwrite is returned by Write when the incoming document
	// holds no deals but the persisted one does. It guards against callers
	// that failed to load state before writing.
	ErrEmptyOverwrite = errors.New("refusing to overwrite non-empty deal store with an empty document")

	// ErrResetDisabled is returned by Reset when the deployment forbids
	// administrative wipes.
	ErrResetDisabled = errors.New("deal store reset is disabled")

	// ErrNoChange can be returned by a Mutate callback to skip the write
	// without failing the operation.
	ErrNoChange = errors.New("no change")
)

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}

// FileStore persists one JSON document per country under a data directory.
// Every read-modify-write sequence runs under that country's mutex, so
// concurrent handlers against the same partition serialize instead of
// losing writes.
type FileStore struct {
	dir        string
	allowReset bool
	logger     logger
	mus        map[model.Country]*sync.Mutex
}

func NewFileStore(dir string, allowReset bool, log logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "error creating deal store directory: %s", dir)
	}
	fs := &FileStore{
		dir:        dir,
		allowReset: allowReset,
		logger:     log,
		mus:        map[model.Country]*sync.Mutex{},
	}
	for _, c := range model.Countries {
		fs.mus[c] = &sync.Mutex{}
	}
	fs.migrateLegacy()
	return fs, nil
}

func (fs *FileStore) path(c model.Country) string {
	return filepath.Join(fs.dir, "deals-"+string(c)+".json")
}

func (fs *FileStore) mu(c model.Country) *sync.Mutex {
	return fs.mus[model.ParseCountry(string(c))]
}

// Read returns the country's document. It never fails: a missing file is
// bootstrapped to an empty store and a corrupt file degrades to an empty
// store with a logged error.
func (fs *FileStore) Read(c model.Country) model.Store {
	mu := fs.mu(c)
	mu.Lock()
	defer mu.Unlock()
	return fs.readLocked(c)
}

func (fs *FileStore) readLocked(c model.Country) model.Store {
	var st model.Store
	bs, err := os.ReadFile(fs.path(c))
	if err != nil {
		if os.IsNotExist(err) {
			st.Normalize()
			if werr := fs.writeDocLocked(c, st, false); werr != nil {
				fs.logger.Errorf("dealstore: Error bootstrapping empty store for country %s, err: %v", c, werr)
			}
		} else {
			fs.logger.Errorf("dealstore: Error reading store file for country %s, err: %v", c, err)
		}
		st.Normalize()
		return st
	}
	if err = json.Unmarshal(bs, &st); err != nil {
		fs.logger.Errorf("dealstore: Corrupt store file for country %s, degrading to empty store, err: %v", c, err)
		st = model.Store{}
	}
	st.Normalize()
	return st
}

// Write replaces the country's document. It fails with ErrEmptyOverwrite
// when the incoming document holds no deals but the persisted one does;
// callers that legitimately empty a store go through Mutate or Reset.
func (fs *FileStore) Write(c model.Country, st model.Store) error {
	mu := fs.mu(c)
	mu.Lock()
	defer mu.Unlock()

	cur := fs.readLocked(c)
	if len(st.Deals) == 0 && len(cur.Deals) > 0 {
		return errors.Wrapf(ErrEmptyOverwrite, "country: %s, persisted deals: %d", c, len(cur.Deals))
	}
	return fs.writeDocLocked(c, st, true)
}

// Mutate runs fn on the current document and persists the result, all
// under the country lock. fn may return ErrNoChange to skip the write.
func (fs *FileStore) Mutate(c model.Country, fn func(st *model.Store) error) error {
	mu := fs.mu(c)
	mu.Lock()
	defer mu.Unlock()

	st := fs.readLocked(c)
	if err := fn(&st); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	return fs.writeDocLocked(c, st, true)
}

type UpsertResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// Upsert merges incoming deals into the country's document, keyed by Key.
// Existing records keep their ID, CreatedAt and counters; incoming
// non-zero fields win. A record with no status on either side defaults to
// approved, as does a newly inserted record: bulk ingestion is trusted
// input, unlike public submission.
func (fs *FileStore) Upsert(c model.Country, incoming []model.Deal) (UpsertResult, error) {
	mu := fs.mu(c)
	mu.Lock()
	defer mu.Unlock()

	st := fs.readLocked(c)
	byKey := make(map[string]int, len(st.Deals))
	for i, d := range st.Deals {
		byKey[Key(d)] = i
	}

	var res UpsertResult
	now := time.Now()
	for _, in := range incoming {
		in.Country = model.ParseCountry(string(c))
		if i, ok := byKey[Key(in)]; ok {
			existing := &st.Deals[i]
			if existing.Status == "" && in.Status == "" {
				existing.Status = model.StatusApproved
			}
			existing.UpdateWith(in)
			res.Updated++
			continue
		}
		d := in
		d.ID = uuid.NewString()
		if d.Status == "" {
			d.Status = model.StatusApproved
		} else {
			d.Status = model.NormalizeStatus(d.Status)
		}
		if d.Category == "" {
			d.Category = "Other"
		}
		d.DiscountPercent = model.ComputeDiscountPercent(d.Price, d.OriginalPrice)
		d.CreatedAt = now
		d.UpdatedAt = now
		st.Deals = append(st.Deals, d)
		byKey[Key(d)] = len(st.Deals) - 1
		res.Added++
	}
	res.Total = len(st.Deals)

	if res.Added == 0 && res.Updated == 0 {
		return res, nil
	}
	return res, fs.writeDocLocked(c, st, true)
}

// Reset wipes the country's document. Disabled deployments get
// ErrResetDisabled so the wipe cannot happen by accident.
func (fs *FileStore) Reset(c model.Country) error {
	if !fs.allowReset {
		return ErrResetDisabled
	}
	mu := fs.mu(c)
	mu.Lock()
	defer mu.Unlock()

	var st model.Store
	st.Normalize()
	return fs.writeDocLocked(c, st, true)
}

// writeDocLocked serializes and atomically replaces the country file.
// Caller must hold the country lock. backup controls the best-effort .bak
// copy of the previous contents.
func (fs *FileStore) writeDocLocked(c model.Country, st model.Store, backup bool) error {
	st.Normalize()
	st.UpdatedAt = time.Now()

	path := fs.path(c)
	if backup {
		if err := copyFile(path, path+".bak"); err != nil && !os.IsNotExist(errors.Cause(err)) {
			fs.logger.Errorf("dealstore: Error writing backup for country %s, err: %v", c, err)
		}
	}

	bs, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "error marshalling store document for country: %s", c)
	}
	tmp, err := os.CreateTemp(fs.dir, "deals-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "error creating temp store file for country: %s", c)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(bs); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "error writing temp store file for country: %s", c)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "error closing temp store file for country: %s", c)
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "error replacing store file for country: %s", c)
	}
	return nil
}

// migrateLegacy copies a pre-partitioning single-file layout into the CA
// partition. It never overwrites a CA file that already holds deals and
// the source check makes it idempotent across restarts.
func (fs *FileStore) migrateLegacy() {
	legacyPath := filepath.Join(fs.dir, legacyFileName)
	bs, err := os.ReadFile(legacyPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fs.logger.Errorf("dealstore: Error reading legacy store file: %s, err: %v", legacyPath, err)
		}
		return
	}

	mu := fs.mu(model.CountryCA)
	mu.Lock()
	defer mu.Unlock()

	if cur, err := os.ReadFile(fs.path(model.CountryCA)); err == nil {
		var st model.Store
		if json.Unmarshal(cur, &st) == nil && len(st.Deals) > 0 {
			fs.logger.Debugf("dealstore: CA partition already holds %d deal(s), skipping legacy migration", len(st.Deals))
			return
		}
	}

	var st model.Store
	if err = json.Unmarshal(bs, &st); err != nil || len(st.Deals) == 0 {
		// Oldest layout was a bare deals array.
		var ds []model.Deal
		if err = json.Unmarshal(bs, &ds); err != nil {
			fs.logger.Errorf("dealstore: Legacy store file is not migratable: %s, err: %v", legacyPath, err)
			return
		}
		st = model.Store{Deals: ds}
	}
	for i := range st.Deals {
		if st.Deals[i].Country == "" {
			st.Deals[i].Country = model.CountryCA
		}
	}
	if err = fs.writeDocLocked(model.CountryCA, st, false); err != nil {
		fs.logger.Errorf("dealstore: Error migrating legacy store file into CA partition, err: %v", err)
		return
	}
	fs.logger.Infof("dealstore: Migrated %d deal(s) from legacy store file into CA partition", len(st.Deals))
}

func copyFile(src, dst string) error {
	bs, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, "error reading file: %s", src)
	}
	return errors.Wrapf(os.WriteFile(dst, bs, 0o644), "error writing file: %s", dst)
}
