package store

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/tagsync/internal/profile"
)

// Store provides database access to all raw objects.
//
// Store deliberately keeps no in-process cache of tags: usage counts are
// mutated by concurrent synchronizations and only the database can order them.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// RunInTx runs fn inside a single tag transaction. The transaction is committed
// when fn returns nil and rolled back on error or panic.
func (s *Store) RunInTx(ctx context.Context, fn func(tx TagTx) error) (err error) {
	tx, err := s.driver.BeginTagTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin tag transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Warn("failed to rollback tag transaction", slog.String("error", rbErr.Error()))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit tag transaction")
	}
	return nil
}
