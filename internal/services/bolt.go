package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/visionarydirector/concierge/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the waitlist recorder using a BoltDB backend. Entries are kept in a single bucket,
// keyed by a sequence number so that they are listed in submission order.
type BoltDB struct {
	db *bolt.DB
}

type boltWaitlistEntry struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	SubmittedAt time.Time `json:"submittedAt"`
}

var waitlistBucket = []byte("waitlist")

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(waitlistBucket)
		return err
	})
	if err != nil {
		db.Close()
		return BoltDB{}, fmt.Errorf("failed to create waitlist bucket: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// Record stores a waitlist entry. Email addresses are stored lower-cased.
func (b BoltDB) Record(_ context.Context, entry models.WaitlistEntry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(waitlistBucket)
		if bucket == nil {
			return fmt.Errorf("waitlist bucket is missing")
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}

		v, err := json.Marshal(boltWaitlistEntry{
			Name:        entry.Name,
			Email:       strings.ToLower(entry.Email),
			SubmittedAt: entry.SubmittedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal waitlist entry: %w", err)
		}

		return bucket.Put(sequenceKey(seq), v)
	})
}

// Entries retrieves all waitlist entries in submission order.
func (b BoltDB) Entries(context.Context) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(waitlistBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, v []byte) error {
			var e boltWaitlistEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal waitlist entry: %w", err)
			}
			entries = append(entries, models.WaitlistEntry{
				Name:        e.Name,
				Email:       e.Email,
				SubmittedAt: e.SubmittedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// sequenceKey encodes seq so that byte order matches numeric order.
func sequenceKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}
