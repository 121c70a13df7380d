// Package store implements the worker's and API's persistence on gorm. Every
// state write is a single conditional statement so many workers can share one
// database without locks.
package store

import (
	"time"

	"gorm.io/gorm"

	"paworker/internal/constants"
)

// Store groups the repositories over one connection pool.
type Store struct {
	Requests    *Requests
	Documents   *Documents
	Packs       *EvidencePacks
	Jobs        *ProcessingJobs
	DeadLetters *DeadLetters
	Audit       *Audit
}

func New(db *gorm.DB) *Store {
	return &Store{
		Requests:    &Requests{DB: db},
		Documents:   &Documents{DB: db},
		Packs:       &EvidencePacks{DB: db},
		Jobs:        &ProcessingJobs{DB: db},
		DeadLetters: &DeadLetters{DB: db},
		Audit:       &Audit{DB: db},
	}
}

var now = func() time.Time { return time.Now().UTC() }

const workerActor = constants.ModifiedBy

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
