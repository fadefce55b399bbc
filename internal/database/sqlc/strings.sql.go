package sqldb

import "context"

const getString = `SELECT key, locator, document, modified_at FROM strings WHERE key = ?`

func (q *Queries) GetString(ctx context.Context, key string) (String, error) {
	row := q.db.QueryRowContext(ctx, getString, key)
	var s String
	err := row.Scan(&s.Key, &s.Locator, &s.Document, &s.ModifiedAt)
	return s, err
}

const listStrings = `SELECT key, locator, document, modified_at FROM strings ORDER BY locator`

func (q *Queries) ListStrings(ctx context.Context) ([]String, error) {
	rows, err := q.db.QueryContext(ctx, listStrings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []String
	for rows.Next() {
		var s String
		if err := rows.Scan(&s.Key, &s.Locator, &s.Document, &s.ModifiedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertString = `INSERT INTO strings (key, locator, document, modified_at) VALUES (?, ?, ?, ?)`

type InsertStringParams struct {
	Key        string
	Locator    string
	Document   []byte
	ModifiedAt int64
}

func (q *Queries) InsertString(ctx context.Context, arg InsertStringParams) error {
	_, err := q.db.ExecContext(ctx, insertString, arg.Key, arg.Locator, arg.Document, arg.ModifiedAt)
	return err
}

const updateString = `UPDATE strings SET document = ?, modified_at = ? WHERE key = ?`

type UpdateStringParams struct {
	Document   []byte
	ModifiedAt int64
	Key        string
}

func (q *Queries) UpdateString(ctx context.Context, arg UpdateStringParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateString, arg.Document, arg.ModifiedAt, arg.Key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteString = `DELETE FROM strings WHERE key = ?`

func (q *Queries) DeleteString(ctx context.Context, key string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteString, key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAllStrings = `DELETE FROM strings`

func (q *Queries) DeleteAllStrings(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllStrings)
	return err
}
