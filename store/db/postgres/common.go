package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/tagsync/store"
)

// placeholder returns a positional placeholder for PostgreSQL ($1, $2, ...).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

const (
	foreignKeyViolation  = "23503"
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// mapConstraintError turns errors a retried transaction can recover from into store.ErrConflict.
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case foreignKeyViolation, uniqueViolation, serializationFailure, deadlockDetected:
			return errors.Wrap(store.ErrConflict, pqErr.Message)
		}
	}
	return err
}

func int64Array[T ~int32 | ~int64](values []T) pq.Int64Array {
	list := make(pq.Int64Array, 0, len(values))
	for _, v := range values {
		list = append(list, int64(v))
	}
	return list
}

// escapeLike escapes LIKE wildcards so the value matches literally. Use with ESCAPE '\'.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const tagColumns = "tag.id, tag.language, tag.text, tag.usage_count, tag.slug, tag.created_ts, tag.updated_ts"

func scanTag(row rowScanner, extra ...any) (*store.Tag, error) {
	tag := &store.Tag{}
	dest := append(extra, &tag.ID, &tag.Language, &tag.Text, &tag.Count, &tag.Slug, &tag.CreatedTs, &tag.UpdatedTs)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return tag, nil
}
