// Package watchlist owns per-user watch entries. All mutation goes through
// read-modify-write cycles guarded by optimistic versioning, so a UI edit
// and a scheduler cycle racing on the same user can never silently drop
// each other's writes.
package watchlist

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"tokenwatch-telegram-bot/internal/database"
	"tokenwatch-telegram-bot/internal/types"
)

// ErrIndexOutOfRange is returned by RemoveAt for a stale or invalid index.
var ErrIndexOutOfRange = errors.New("watchlist index out of range")

// maxUpdateRetries bounds version-conflict retries; conflicts only happen
// when the scheduler and a UI action write the same user simultaneously.
const maxUpdateRetries = 5

type Store struct {
	onWrite []func()
}

func NewStore() *Store {
	return &Store{}
}

// OnWrite registers a hook fired after every successful watchlist write.
// Used to invalidate the aggregate report caches.
func (s *Store) OnWrite(fn func()) {
	s.onWrite = append(s.onWrite, fn)
}

func (s *Store) fireWriteHooks() {
	for _, fn := range s.onWrite {
		fn()
	}
}

// load reads and normalizes a user's watchlist. Legacy entries are upgraded
// and the normalized form persisted immediately, so later reads see clean
// data. The upgrade is idempotent.
func (s *Store) load(userID int64) ([]types.WatchEntry, int64, error) {
	raw, version, err := database.GetWatchlist(userID)
	if err != nil {
		return nil, 0, err
	}

	entries, changed, err := decodeWatchlist(raw)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "user %d", userID)
	}
	if changed {
		encoded, err := encodeWatchlist(entries)
		if err != nil {
			return nil, 0, err
		}
		if err := database.ReplaceWatchlist(userID, encoded, version); err != nil {
			// A concurrent writer got there first; its data is already
			// normalized or will be on its next read.
			if !errors.Is(err, database.ErrVersionConflict) {
				return nil, 0, err
			}
		} else {
			version++
			log.Debugf("normalized legacy watchlist for user %d", userID)
		}
	}
	return entries, version, nil
}

// Get returns a user's watchlist, creating an empty one on first access.
func (s *Store) Get(userID int64) ([]types.WatchEntry, error) {
	entries, _, err := s.load(userID)
	return entries, err
}

// Update runs fn over the user's current watchlist and atomically persists
// the result, retrying on version conflicts. fn must be pure: it may be
// re-invoked with a fresher snapshot.
func (s *Store) Update(userID int64, fn func([]types.WatchEntry) ([]types.WatchEntry, error)) error {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		entries, version, err := s.load(userID)
		if err != nil {
			return err
		}

		next, err := fn(entries)
		if err != nil {
			return err
		}

		encoded, err := encodeWatchlist(next)
		if err != nil {
			return err
		}
		err = database.ReplaceWatchlist(userID, encoded, version)
		if errors.Is(err, database.ErrVersionConflict) {
			log.Debugf("watchlist version conflict for user %d, retrying", userID)
			continue
		}
		if err != nil {
			return err
		}
		s.fireWriteHooks()
		return nil
	}
	return errors.Wrapf(database.ErrVersionConflict, "user %d after %d attempts", userID, maxUpdateRetries)
}

// Add appends a new entry to the user's watchlist.
func (s *Store) Add(userID int64, e types.WatchEntry) error {
	return s.Update(userID, func(entries []types.WatchEntry) ([]types.WatchEntry, error) {
		return append(entries, e), nil
	})
}

// RemoveAt removes the entry at index, preserving the order of the rest.
// The removed entry is returned for confirmation messages.
func (s *Store) RemoveAt(userID int64, index int) (types.WatchEntry, error) {
	var removed types.WatchEntry
	err := s.Update(userID, func(entries []types.WatchEntry) ([]types.WatchEntry, error) {
		if index < 0 || index >= len(entries) {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d of %d", index, len(entries))
		}
		removed = entries[index]
		return append(entries[:index:index], entries[index+1:]...), nil
	})
	return removed, err
}

// Clear empties a user's watchlist.
func (s *Store) Clear(userID int64) error {
	return s.Update(userID, func([]types.WatchEntry) ([]types.WatchEntry, error) {
		return nil, nil
	})
}

// All returns a snapshot of every user's watchlist. Entries are upgraded in
// memory but not written back; each user's list is normalized for real on
// their own next read.
func (s *Store) All() (map[int64][]types.WatchEntry, error) {
	raws, err := database.AllWatchlists()
	if err != nil {
		return nil, err
	}

	lists := make(map[int64][]types.WatchEntry, len(raws))
	for userID, raw := range raws {
		entries, _, err := decodeWatchlist(raw)
		if err != nil {
			log.Errorf("skipping undecodable watchlist for user %d: %v", userID, err)
			continue
		}
		lists[userID] = entries
	}
	return lists, nil
}
