// Package checkpoint records which leads have been enriched and persists
// each enriched lead as soon as it is produced, so an interrupted run can
// resume without paying for the same lookups twice.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/filestore"
	"github.com/sells-group/lead-enrichment/internal/lead"
	"github.com/sells-group/lead-enrichment/internal/lock"
)

const (
	processedPath = "checkpoint/processed.json"
	leadsDir      = "leads"
	dailyDir      = "leads/daily"
	dayLayout     = "2006-01-02"
)

// Summary is the persisted form of one enriched lead.
type Summary struct {
	Key     string      `json:"key"`
	SavedAt time.Time   `json:"saved_at"`
	Row     lead.Row    `json:"row"`
	Result  lead.Result `json:"result"`
}

type processedDoc struct {
	Keys      []string  `json:"keys"`
	UpdatedAt time.Time `json:"updated_at"`
}

type dailyDoc struct {
	Date    string             `json:"date"`
	Entries map[string]Summary `json:"entries"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for SavedAt and day buckets.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the checkpoint layer over a file store. All mutations of shared
// documents run under the lock primitive.
type Store struct {
	files  *filestore.Store
	locker *lock.Locker
	now    func() time.Time
}

// New creates a checkpoint store.
func New(files *filestore.Store, locker *lock.Locker, opts ...Option) *Store {
	s := &Store{files: files, locker: locker, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LeadKey derives the dedup key for row.
func (s *Store) LeadKey(row lead.Row) string {
	return lead.Key(row)
}

// IsProcessed reports whether row's key is in the processed set. Name-only
// keys never match.
func (s *Store) IsProcessed(ctx context.Context, row lead.Row) (bool, error) {
	key := lead.Key(row)
	if !lead.IsStrongKey(key) {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, eris.Wrap(err, "checkpoint: is processed")
	}
	doc, err := s.readProcessed()
	if err != nil {
		return false, err
	}
	for _, k := range doc.Keys {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

// SaveProcessedKey adds key to the processed set. Saving a key twice leaves
// the set unchanged.
func (s *Store) SaveProcessedKey(ctx context.Context, key string) error {
	if key == "" {
		return eris.New("checkpoint: empty lead key")
	}
	return s.locker.WithLock(ctx, processedPath, 0, func() error {
		doc, err := s.readProcessed()
		if err != nil {
			return err
		}
		for _, k := range doc.Keys {
			if k == key {
				return nil
			}
		}
		doc.Keys = append(doc.Keys, key)
		doc.UpdatedAt = s.now().UTC()
		return eris.Wrap(s.files.WriteJSON(processedPath, doc), "checkpoint: write processed set")
	})
}

// ProcessedKeys returns the processed set in insertion order.
func (s *Store) ProcessedKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "checkpoint: processed keys")
	}
	doc, err := s.readProcessed()
	if err != nil {
		return nil, err
	}
	return doc.Keys, nil
}

// Count returns the size of the processed set.
func (s *Store) Count(ctx context.Context) (int, error) {
	keys, err := s.ProcessedKeys(ctx)
	return len(keys), err
}

// Clear empties the processed set. Saved lead artifacts are kept.
func (s *Store) Clear(ctx context.Context) error {
	return s.locker.WithLock(ctx, processedPath, 0, func() error {
		return eris.Wrap(s.files.Remove(processedPath), "checkpoint: clear")
	})
}

func (s *Store) readProcessed() (processedDoc, error) {
	var doc processedDoc
	err := s.files.ReadJSON(processedPath, &doc)
	if errors.Is(err, filestore.ErrNotExist) {
		return processedDoc{}, nil
	}
	if err != nil {
		return processedDoc{}, eris.Wrap(err, "checkpoint: read processed set")
	}
	return doc, nil
}

// SaveEnrichedLeadImmediate writes the lead's artifact, upserts it into the
// day's rolling aggregate, and marks its key processed. Failures are logged
// and never returned; the returned summary reflects what was attempted.
func (s *Store) SaveEnrichedLeadImmediate(ctx context.Context, row lead.Row, result lead.Result) Summary {
	now := s.now().UTC()
	sum := Summary{Key: lead.Key(row), SavedAt: now, Row: row, Result: result}
	log := zap.L().With(zap.String("lead_key", sum.Key))

	day := now.Format(dayLayout)
	if err := s.files.WriteJSON(artifactPath(day, sum.Key), sum); err != nil {
		log.Warn("checkpoint: write lead artifact failed", zap.Error(err))
	}
	if err := s.upsertDaily(ctx, day, sum); err != nil {
		log.Warn("checkpoint: update daily aggregate failed", zap.Error(err))
	}
	if err := s.SaveProcessedKey(ctx, sum.Key); err != nil {
		log.Warn("checkpoint: save processed key failed", zap.Error(err))
	}
	return sum
}

func (s *Store) upsertDaily(ctx context.Context, day string, sum Summary) error {
	p := dailyPath(day)
	return s.locker.WithLock(ctx, p, 0, func() error {
		doc := dailyDoc{Date: day}
		err := s.files.ReadJSON(p, &doc)
		if err != nil && !errors.Is(err, filestore.ErrNotExist) {
			return eris.Wrap(err, "checkpoint: read daily aggregate")
		}
		if doc.Entries == nil {
			doc.Entries = make(map[string]Summary)
		}
		doc.Entries[sum.Key] = sum
		return eris.Wrap(s.files.WriteJSON(p, doc), "checkpoint: write daily aggregate")
	})
}

// LoadAll returns every saved lead, newest first, keeping only the most
// recent summary per lead key. Unreadable day documents are skipped.
func (s *Store) LoadAll(ctx context.Context) ([]Summary, error) {
	names, err := s.files.List(dailyDir)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: list daily aggregates")
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	seen := make(map[string]bool)
	var out []Summary
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "checkpoint: load all")
		}
		if path.Ext(name) != ".json" {
			continue
		}
		var doc dailyDoc
		if err := s.files.ReadJSON(path.Join(dailyDir, name), &doc); err != nil {
			zap.L().Warn("checkpoint: skipping unreadable daily aggregate", zap.String("file", name), zap.Error(err))
			continue
		}
		entries := make([]Summary, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			entries = append(entries, e)
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].SavedAt.Equal(entries[j].SavedAt) {
				return entries[i].Key < entries[j].Key
			}
			return entries[i].SavedAt.After(entries[j].SavedAt)
		})
		for _, e := range entries {
			if seen[e.Key] {
				continue
			}
			seen[e.Key] = true
			out = append(out, e)
		}
	}
	return out, nil
}

func dailyPath(day string) string {
	return path.Join(dailyDir, day+".json")
}

func artifactPath(day, key string) string {
	sum := sha256.Sum256([]byte(key))
	return path.Join(leadsDir, day, hex.EncodeToString(sum[:8])+".json")
}
