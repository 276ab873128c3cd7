package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/tagsync/store"
)

type tagTx struct {
	tx *sql.Tx
}

func (d *DB) BeginTagTx(ctx context.Context) (store.TagTx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tag transaction: %w", err)
	}
	return &tagTx{tx: tx}, nil
}

func (t *tagTx) Commit() error {
	return t.tx.Commit()
}

func (t *tagTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (t *tagTx) ListItemTagTexts(ctx context.Context, find *store.FindItemTags) ([]string, error) {
	query := `SELECT tag.text
		FROM tag_link
		JOIN tag ON tag.id = tag_link.tag_id
		WHERE tag_link.module = ? AND tag_link.item_id = ? AND tag.language = ?
		ORDER BY tag.text ASC`
	return t.queryTexts(ctx, query, find.Module, find.ItemID, find.Language)
}

func (t *tagTx) ListExistingTagTexts(ctx context.Context, find *store.FindExistingTags) ([]string, error) {
	if len(find.Texts) == 0 {
		return []string{}, nil
	}
	clause, args := inClause("text", find.Texts, []any{find.Language})
	return t.queryTexts(ctx, "SELECT text FROM tag WHERE language = ? AND "+clause+" ORDER BY text ASC", args...)
}

func (t *tagTx) queryTexts(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag texts: %w", err)
	}
	defer rows.Close()

	texts := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan tag text: %w", err)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag texts: %w", err)
	}
	return texts, nil
}

func (t *tagTx) SlugExists(ctx context.Context, find *store.FindSlug) (bool, error) {
	where, args := []string{"language = ?", "slug = ?"}, []any{find.Language, find.Slug}
	if v := find.ExcludeID; v != nil {
		where, args = append(where, "id != ?"), append(args, *v)
	}

	var exists bool
	if err := t.tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM tag WHERE "+strings.Join(where, " AND ")+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

func (t *tagTx) GetTag(ctx context.Context, id int32) (*store.Tag, error) {
	tag, err := scanTag(t.tx.QueryRowContext(ctx, "SELECT "+tagColumns+" FROM tag WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return tag, nil
}

func (t *tagTx) CreateTag(ctx context.Context, create *store.Tag) (*store.Tag, error) {
	stmt := `INSERT INTO tag (language, text, usage_count, slug)
		VALUES (` + placeholders(4) + `)
		RETURNING id, created_ts, updated_ts`
	if err := t.tx.QueryRowContext(ctx, stmt, create.Language, create.Text, create.Count, create.Slug).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", mapConstraintError(err))
	}
	return create, nil
}

func (t *tagTx) UpdateTag(ctx context.Context, update *store.UpdateTag) (*store.Tag, error) {
	set, args := []string{"updated_ts = ?"}, []any{time.Now().Unix()}
	if v := update.Language; v != nil {
		set, args = append(set, "language = ?"), append(args, *v)
	}
	if v := update.Text; v != nil {
		set, args = append(set, "text = ?"), append(args, *v)
	}
	if v := update.Slug; v != nil {
		set, args = append(set, "slug = ?"), append(args, *v)
	}
	args = append(args, update.ID)

	stmt := `UPDATE tag SET ` + strings.Join(set, ", ") + ` WHERE id = ? RETURNING ` + strings.ReplaceAll(tagColumns, "tag.", "")
	tag, err := scanTag(t.tx.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to update tag: %w", mapConstraintError(err))
	}
	return tag, nil
}

func (t *tagTx) UpdateTagCount(ctx context.Context, update *store.UpdateTagCount) (int64, error) {
	if len(update.Texts) == 0 || update.Delta == 0 {
		return 0, nil
	}
	clause, args := inClause("text", update.Texts, []any{update.Delta, time.Now().Unix(), update.Language})
	stmt := "UPDATE tag SET usage_count = usage_count + ?, updated_ts = ? WHERE language = ? AND " + clause
	result, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update tag count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

func (t *tagTx) CreateTagLinks(ctx context.Context, batch *store.TagLinkBatch) (int64, error) {
	if len(batch.TagTexts) == 0 {
		return 0, nil
	}
	clause, args := inClause("text", batch.TagTexts, []any{batch.Module, batch.ItemID, batch.Language})
	stmt := "INSERT INTO tag_link (module, item_id, tag_id) SELECT ?, ?, id FROM tag WHERE language = ? AND " + clause
	result, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to create tag links: %w", mapConstraintError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

func (t *tagTx) DeleteTagLinks(ctx context.Context, batch *store.TagLinkBatch) (int64, error) {
	if len(batch.TagTexts) == 0 {
		return 0, nil
	}
	clause, args := inClause("text", batch.TagTexts, []any{batch.Module, batch.ItemID, batch.Language})
	stmt := "DELETE FROM tag_link WHERE module = ? AND item_id = ? AND tag_id IN (SELECT id FROM tag WHERE language = ? AND " + clause + ")"
	result, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tag links: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}
