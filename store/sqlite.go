// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/ledger"
	"github.com/zintix-labs/spinpool/sdk/amount"
)

const (
	stateTable   = "pool_state"
	journalTable = "journal"
	stateRowID   = 1
	stateVersion = 1

	// 每批列數 × 欄位數需低於 SQLite 綁定變數上限（32766）
	journalBatch = 500
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pool_state (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		version    INTEGER NOT NULL,
		body       BLOB    NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS journal (
		seq      INTEGER PRIMARY KEY AUTOINCREMENT,
		id       TEXT    NOT NULL UNIQUE,
		kind     TEXT    NOT NULL,
		account  TEXT    NOT NULL,
		stake_id INTEGER NOT NULL,
		round    INTEGER NOT NULL,
		amount   TEXT    NOT NULL,
		outcome  INTEGER NOT NULL,
		height   INTEGER NOT NULL,
		time     INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS journal_account_seq ON journal (account, seq)`,
}

var journalCols = []string{"id", "kind", "account", "stake_id", "round", "amount", "outcome", "height", "time"}

// SQLite 以 SQLite 檔案保存快照（zstd 壓縮的 JSON）與帳務紀錄。
type SQLite struct {
	db     *sql.DB
	tm     trm.Manager
	getter *trmsql.CtxGetter
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

var _ Store = (*SQLite)(nil)

// OpenSQLite 開啟（必要時建立）path 指向的資料庫並建立資料表。
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errs.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, errs.Wrap(err, "sqlite: migrate")
		}
	}
	tm, err := manager.New(trmsql.NewDefaultFactory(db))
	if err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, "sqlite: tx manager")
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, "sqlite: zstd writer")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, "sqlite: zstd reader")
	}
	return &SQLite{db: db, tm: tm, getter: trmsql.DefaultCtxGetter, enc: enc, dec: dec}, nil
}

func (s *SQLite) Load(ctx context.Context) (ledger.State, bool, error) {
	query, args, err := sq.Select("version", "body").
		From(stateTable).
		Where(sq.Eq{"id": stateRowID}).
		ToSql()
	if err != nil {
		return ledger.State{}, false, errs.Wrap(err, "sqlite: build load")
	}
	var (
		version int
		body    []byte
	)
	err = s.getter.DefaultTrOrDB(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(&version, &body)
	if err == sql.ErrNoRows {
		return ledger.State{}, false, nil
	}
	if err != nil {
		return ledger.State{}, false, errs.Wrap(err, "sqlite: load state")
	}
	if version != stateVersion {
		return ledger.State{}, false, errs.Fatalf("sqlite: unsupported state version %d", version)
	}
	raw, err := s.dec.DecodeAll(body, nil)
	if err != nil {
		return ledger.State{}, false, errs.Wrap(err, "sqlite: decompress state")
	}
	var st ledger.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return ledger.State{}, false, errs.Wrap(err, "sqlite: decode state")
	}
	return st, true, nil
}

func (s *SQLite) Save(ctx context.Context, st ledger.State, entries []ledger.Entry) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return errs.Wrap(err, "sqlite: encode state")
	}
	body := s.enc.EncodeAll(raw, nil)
	return s.tm.Do(ctx, func(ctx context.Context) error {
		tr := s.getter.DefaultTrOrDB(ctx, s.db)
		query, args, err := sq.Replace(stateTable).
			Columns("id", "version", "body", "updated_at").
			Values(stateRowID, stateVersion, body, time.Now().Unix()).
			ToSql()
		if err != nil {
			return errs.Wrap(err, "sqlite: build save")
		}
		if _, err := tr.ExecContext(ctx, query, args...); err != nil {
			return errs.Wrap(err, "sqlite: save state")
		}
		if len(entries) == 0 {
			return nil
		}
		for batch := range slices.Chunk(entries, journalBatch) {
			ins := sq.Insert(journalTable).Columns(journalCols...)
			for _, e := range batch {
				ins = ins.Values(e.ID.String(), string(e.Kind), e.Account, e.StakeID, e.Round,
					amount.String(e.Amount), e.Outcome, e.Height, e.Time)
			}
			query, args, err = ins.ToSql()
			if err != nil {
				return errs.Wrap(err, "sqlite: build journal insert")
			}
			if _, err := tr.ExecContext(ctx, query, args...); err != nil {
				return errs.Wrap(err, "sqlite: insert journal")
			}
		}
		return nil
	})
}

func (s *SQLite) Entries(ctx context.Context, account string, limit int) ([]ledger.Entry, error) {
	q := sq.Select(journalCols...).From(journalTable).OrderBy("seq DESC")
	if account != "" {
		q = q.Where(sq.Eq{"account": account})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errs.Wrap(err, "sqlite: build entries")
	}
	rows, err := s.getter.DefaultTrOrDB(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, "sqlite: query entries")
	}
	defer rows.Close()
	var out []ledger.Entry
	for rows.Next() {
		var (
			e    ledger.Entry
			id   string
			kind string
			amt  string
		)
		if err := rows.Scan(&id, &kind, &e.Account, &e.StakeID, &e.Round, &amt, &e.Outcome, &e.Height, &e.Time); err != nil {
			return nil, errs.Wrap(err, "sqlite: scan entry")
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, errs.Wrap(err, "sqlite: entry id")
		}
		if e.Amount, err = amount.Parse(amt); err != nil {
			return nil, errs.Wrap(err, "sqlite: entry amount")
		}
		e.Kind = ledger.EntryKind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "sqlite: iterate entries")
	}
	slices.Reverse(out)
	return out, nil
}

func (s *SQLite) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}
