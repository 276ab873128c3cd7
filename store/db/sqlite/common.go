package sqlite

import (
	"strings"

	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hrygo/tagsync/store"
)

// placeholder returns a placeholder for SQLite (uses ?)
func placeholder(n int) string {
	return "?"
}

// placeholders returns n placeholders for SQLite
func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// inClause renders "column IN (?, ?, ...)" for values appended to args.
func inClause[T any](column string, values []T, args []any) (string, []any) {
	for _, v := range values {
		args = append(args, v)
	}
	return column + " IN (" + placeholders(len(values)) + ")", args
}

// mapConstraintError turns unique and primary key violations into store.ErrConflict.
func mapConstraintError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return errors.Wrap(store.ErrConflict, sqliteErr.Error())
		}
	}
	return err
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
