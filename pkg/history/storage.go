// Package history persists per-invocation run records under the shared
// cache, so `taskground history` can show what ran and how it went.
package history

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/taskground/taskground/pkg/api"
)

const prefixRuns = "runs"

var ErrNotFound = errors.New("run not found")

// Record is one archived invocation.
type Record struct {
	ID       string      `json:"id"`
	Recorded time.Time   `json:"recorded"`
	Report   *api.Report `json:"report"`
}

// Storage stores run records in leveldb. Keys combine the record's unix
// timestamp with a time-sortable xid, so range scans over time windows and
// point lookups both work off the same key.
type Storage struct {
	db *leveldb.DB
}

func Open(path string) (*Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Storage{db}, nil
}

// OpenMemory backs the storage with memory only; tests use it.
func OpenMemory() (*Storage, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Storage{db}, nil
}

func (s *Storage) Close() error { return s.db.Close() }

func runKey(id string) ([]byte, error) {
	u, err := xid.FromString(id)
	if err != nil {
		return nil, errors.New("run key must be an xid")
	}
	k := strconv.FormatInt(u.Time().Unix(), 10) + "_" + u.String()
	return []byte(strings.Join([]string{prefixRuns, k}, ":")), nil
}

// Record archives a report and returns the record id.
func (s *Storage) Record(report *api.Report) (string, error) {
	rec := &Record{
		ID:       xid.New().String(),
		Recorded: time.Now(),
		Report:   report,
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	key, err := runKey(rec.ID)
	if err != nil {
		return "", err
	}
	if err := s.db.Put(key, val, &opt.WriteOptions{Sync: true}); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Get returns one record by id.
func (s *Storage) Get(id string) (*Record, error) {
	key, err := runKey(id)
	if err != nil {
		return nil, err
	}
	val, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	if err := json.Unmarshal(val, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Between returns the records in [start, end), oldest first.
func (s *Storage) Between(start, end time.Time) ([]*Record, error) {
	rng := util.Range{
		Start: []byte(prefixRuns + ":" + strconv.FormatInt(start.Unix(), 10)),
		Limit: []byte(prefixRuns + ":" + strconv.FormatInt(end.Unix(), 10)),
	}

	records := make([]*Record, 0)
	iter := s.db.NewIterator(&rng, nil)
	defer iter.Release()

	for iter.Next() {
		rec := &Record{}
		if err := json.Unmarshal(iter.Value(), rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, iter.Error()
}

// Recent returns up to n most recent records, newest first.
func (s *Storage) Recent(n int) ([]*Record, error) {
	all, err := s.Between(time.Unix(0, 0), time.Now().Add(time.Hour))
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all, nil
}
