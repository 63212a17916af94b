// Copyright 2026 The SendPigeon Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package persist keeps dev server emails in SQLite so they survive a
// restart.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sendpigeon/cli/internal/devserver"
	"github.com/sendpigeon/cli/internal/homedir"
)

// DefaultCapacity is how many emails a DB keeps unless told otherwise.
const DefaultCapacity = 1000

var (
	createTableSql = []string{
		// The dev_emails table holds one row per caught email.
		//
		// Field: seq
		//
		//   Insertion order.  The newest email has the highest seq.
		//
		// Field: email_id
		//
		//   The "dev_" prefixed id handed to the sender.
		//
		// Field: source
		//
		//   "http" or "smtp".
		//
		// Field: created_at
		//
		//   Unix time in milliseconds when the email was caught.
		//
		// Field: body
		//
		//   The email as JSON, in the form served by /api/emails.
		`
CREATE TABLE IF NOT EXISTS dev_emails (
seq INTEGER PRIMARY KEY AUTOINCREMENT,
email_id TEXT NOT NULL UNIQUE,
source TEXT NOT NULL,
created_at INTEGER NOT NULL,
body TEXT NOT NULL
);`,
	}
)

// DB is a devserver.Store backed by a SQLite file.
type DB struct {
	db       *sql.DB
	capacity int
	log      zerolog.Logger
}

var _ devserver.Store = (*DB)(nil)

// DefaultPath is the database used by "dev --persist".
func DefaultPath() (string, error) {
	return homedir.Path(".sendpigeon", "dev.db")
}

func dsnFromPath(path string, addValues url.Values) (string, error) {
	var u *url.URL
	if !strings.HasPrefix(path, "file:") {
		u = &url.URL{Scheme: "file", Path: path}
	} else {
		var err error
		u, err = url.Parse(path)
		if err != nil {
			return "", err
		}
	}
	values := u.Query()
	for k, v := range addValues {
		for _, item := range v {
			values.Add(k, item)
		}
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// Open opens or creates the database at path, keeping at most capacity
// emails (DefaultCapacity when not positive).
func Open(ctx context.Context, path string, capacity int, log zerolog.Logger) (*DB, error) {
	// The _busy_timeout is a SQLite extension that controls how
	// long SQLite will poll before giving up.  HTTP and SMTP
	// captures write concurrently.
	var busyTimeout = int(30*time.Second) / int(time.Millisecond)

	dsn, err := dsnFromPath(path, url.Values{
		"_busy_timeout": {fmt.Sprintf("%d", busyTimeout)}})
	if err != nil {
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not form a DB DSN from "+
				"the given path",
			path)
	}
	log.Debug().Str("dsn", dsn).Msg("opening database")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not open database at %q",
			path, dsn)
	}

	if err = initSchema(ctx, db, log); err != nil {
		db.Close()
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not initialize the "+
				"database schema", path)
	}

	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &DB{db: db, capacity: capacity, log: log}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	for _, sql := range createTableSql {
		log.Debug().Str("sql", sql).Msg("SQL Exec")
		if _, err := db.ExecContext(ctx, sql); err != nil {
			return errors.Wrapf(err, "while executing %q", sql)
		}
	}

	return nil
}

// Add inserts e and trims the table to the newest capacity rows.
func (db *DB) Add(ctx context.Context, e devserver.Email) error {
	body, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "encoding email")
	}
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction failed")
	}
	defer tx.Rollback()

	const insert = `
INSERT INTO dev_emails (email_id, source, created_at, body) values ($1, $2, $3, $4)
`
	if _, err := tx.ExecContext(ctx, insert, e.ID, e.Source, e.CreatedAt.UnixMilli(), string(body)); err != nil {
		return errors.Wrap(err, "db insert failed")
	}
	const trim = `
DELETE FROM dev_emails WHERE seq NOT IN (
SELECT seq FROM dev_emails ORDER BY seq DESC LIMIT $1
)
`
	if _, err := tx.ExecContext(ctx, trim, db.capacity); err != nil {
		return errors.Wrap(err, "db trim failed")
	}
	return tx.Commit()
}

// List returns the stored emails, newest first.
func (db *DB) List(ctx context.Context) ([]devserver.Email, error) {
	const q = `SELECT body FROM dev_emails ORDER BY seq DESC`
	rows, err := db.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "db query failed in List")
	}
	defer rows.Close()

	emails := []devserver.Email{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "db scan failed in List")
		}
		var e devserver.Email
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			return nil, errors.Wrap(err, "decoding stored email")
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (db *DB) Get(ctx context.Context, id string) (*devserver.Email, error) {
	const q = `SELECT body FROM dev_emails WHERE email_id = $1`
	var body string
	if err := db.db.QueryRowContext(ctx, q, id).Scan(&body); err != nil {
		if err == sql.ErrNoRows {
			return nil, devserver.ErrNotFound
		}
		return nil, errors.Wrap(err, "db query failed in Get")
	}
	var e devserver.Email
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return nil, errors.Wrap(err, "decoding stored email")
	}
	return &e, nil
}

func (db *DB) Clear(ctx context.Context) error {
	if _, err := db.db.ExecContext(ctx, `DELETE FROM dev_emails`); err != nil {
		return errors.Wrap(err, "db delete failed")
	}
	return nil
}
