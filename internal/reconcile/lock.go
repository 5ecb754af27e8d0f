package reconcile

import (
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Locker serializes work on one key within a process.
type Locker interface {
	Lock(key string) (unlock func())
}

// KeyedMutex is a Locker holding one mutex per key. Entries are dropped
// once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates a KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// PairKey is the lock key for an unordered pair of accounts.
func PairKey(u, v string) string {
	if v < u {
		u, v = v, u
	}
	return u + "|" + v
}

// lockPair takes the pair's row lock for the rest of tx, creating the lock
// row on first use. This serializes writers across processes sharing the
// database.
func lockPair(tx *gorm.DB, key string, now time.Time) error {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PairLock{PairKey: key, UpdatedAt: now}).Error; err != nil {
		return fmt.Errorf("reconcile: create pair lock %s: %w: %w", key, models.ErrPersistence, err)
	}
	var row models.PairLock
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pair_key = ?", key).First(&row).Error; err != nil {
		return fmt.Errorf("reconcile: lock pair %s: %w: %w", key, models.ErrPersistence, err)
	}
	return nil
}
