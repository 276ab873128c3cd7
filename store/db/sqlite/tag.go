package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hrygo/tagsync/store"
)

func (d *DB) ListTags(ctx context.Context, find *store.FindTag) ([]*store.Tag, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "tag.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.IDs) > 0 {
		var clause string
		clause, args = inClause("tag.id", find.IDs, args)
		where = append(where, clause)
	}
	if v := find.Language; v != nil {
		where, args = append(where, "tag.language = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Text; v != nil {
		where, args = append(where, "tag.text = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Slug; v != nil {
		where, args = append(where, "tag.slug = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TextPrefix; v != nil {
		where, args = append(where, "tag.text LIKE "+placeholder(len(args)+1)+` ESCAPE '\'`), append(args, escapeLike(*v)+"%")
	}
	if v := find.MinCount; v != nil {
		where, args = append(where, "tag.usage_count >= "+placeholder(len(args)+1)), append(args, *v)
	}

	orderBy := "ORDER BY tag.text ASC"
	if find.OrderByMostUsed {
		orderBy = "ORDER BY tag.usage_count DESC, tag.text ASC"
	}

	query := `SELECT ` + tagColumns + ` FROM tag WHERE ` + strings.Join(where, " AND ") + ` ` + orderBy
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Tag, 0)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		list = append(list, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return list, nil
}

func (d *DB) DeleteTags(ctx context.Context, delete *store.DeleteTag) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	idClause, args := inClause("id", delete.IDs, nil)
	found, err := queryIDs(ctx, tx, "SELECT id FROM tag WHERE "+idClause, args...)
	if err != nil {
		return 0, err
	}
	if missing := store.MissingIDs(delete.IDs, found); len(missing) > 0 {
		return 0, &store.MissingTagsError{IDs: missing}
	}

	linkClause, linkArgs := inClause("tag_id", delete.IDs, nil)
	if _, err := tx.ExecContext(ctx, "DELETE FROM tag_link WHERE "+linkClause, linkArgs...); err != nil {
		return 0, fmt.Errorf("failed to delete tag links: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM tag WHERE "+idClause, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tags: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit tag deletion: %w", err)
	}
	return deleted, nil
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int32, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag ids: %w", err)
	}
	defer rows.Close()

	ids := []int32{}
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tag id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag ids: %w", err)
	}
	return ids, nil
}

func (d *DB) DeleteZeroCountTags(ctx context.Context) (int64, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM tag WHERE usage_count <= 0")
	if err != nil {
		return 0, fmt.Errorf("failed to delete zero count tags: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

func (d *DB) ListTagLinks(ctx context.Context, find *store.FindTagLink) ([]*store.TagLink, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.Module; v != nil {
		where, args = append(where, "tag_link.module = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.ItemIDs) > 0 {
		var clause string
		clause, args = inClause("tag_link.item_id", find.ItemIDs, args)
		where = append(where, clause)
	}
	if v := find.TagID; v != nil {
		where, args = append(where, "tag_link.tag_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Language; v != nil {
		where, args = append(where, "tag.language = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT tag_link.module, tag_link.item_id, tag_link.tag_id, tag_link.created_ts, ` + tagColumns + `
		FROM tag_link
		JOIN tag ON tag.id = tag_link.tag_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY tag_link.module ASC, tag_link.item_id ASC, tag.text ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag links: %w", err)
	}
	defer rows.Close()

	list := make([]*store.TagLink, 0)
	for rows.Next() {
		link := &store.TagLink{}
		tag, err := scanTag(rows, &link.Module, &link.ItemID, &link.TagID, &link.CreatedTs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag link: %w", err)
		}
		link.Tag = tag
		list = append(list, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag links: %w", err)
	}
	return list, nil
}

func (d *DB) ListRelatedItems(ctx context.Context, find *store.FindRelatedItem) ([]*store.RelatedItem, error) {
	query := `SELECT other.module, other.item_id, COUNT(*) AS shared
		FROM tag_link AS self
		JOIN tag_link AS other ON other.tag_id = self.tag_id
		WHERE self.module = ? AND self.item_id = ? AND other.module = ?
			AND NOT (other.module = self.module AND other.item_id = self.item_id)
		GROUP BY other.module, other.item_id
		ORDER BY shared DESC, other.item_id ASC`
	if find.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, find.Module, find.ItemID, find.OtherModule)
	if err != nil {
		return nil, fmt.Errorf("failed to query related items: %w", err)
	}
	defer rows.Close()

	list := make([]*store.RelatedItem, 0)
	for rows.Next() {
		item := &store.RelatedItem{}
		if err := rows.Scan(&item.Module, &item.ItemID, &item.SharedCount); err != nil {
			return nil, fmt.Errorf("failed to scan related item: %w", err)
		}
		list = append(list, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate related items: %w", err)
	}
	return list, nil
}
