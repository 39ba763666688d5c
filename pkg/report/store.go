// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/fix"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fix_runs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	task_key          TEXT    NOT NULL,
	input_path        TEXT    NOT NULL,
	is_analyze        INTEGER NOT NULL,
	status            TEXT    NOT NULL,
	error             TEXT    NOT NULL DEFAULT '',
	output_file_count INTEGER NOT NULL,
	need_fix          INTEGER NOT NULL,
	unrepairable      INTEGER NOT NULL,
	issue_total       INTEGER NOT NULL,
	issue_types       TEXT    NOT NULL,
	elapsed_ms        INTEGER NOT NULL,
	created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fix_runs_input ON fix_runs(input_path);
`

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// Record fix_runs表中的一行
type Record struct {
	Id              int64
	TaskKey         string
	InputPath       string
	Analyze         bool
	Status          fix.Status
	Error           string
	OutputFileCount int
	NeedFix         bool
	Unrepairable    bool
	IssueTotal      int
	IssueTypes      fix.IssueTypeCount
	ElapsedMs       int64
	CreatedAt       time.Time
}

// Store 修复记录的sqlite存储
type Store struct {
	db *sql.DB
}

// OpenStore `path`为":memory:"时使用内存数据库
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 内存数据库每个连接是独立的
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err = db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	base.Log.Debugf("open report store. path=%s", path)
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, resp *fix.Response) (int64, error) {
	issueTypes, err := json.Marshal(resp.IssueTypes)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO fix_runs (task_key, input_path, is_analyze, status, error, output_file_count, need_fix,
			unrepairable, issue_total, issue_types, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		resp.TaskKey, resp.InputPath, boolToInt(resp.Analyze), string(resp.Status), resp.Error, resp.OutputFileCount,
		boolToInt(resp.NeedFix), boolToInt(resp.Unrepairable), resp.IssueTypes.Total(), string(issueTypes),
		resp.ElapsedMs, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List 按时间倒序返回最近的`limit`条记录，`inputPath`不为空时只返回该文件的记录
func (s *Store) List(ctx context.Context, inputPath string, limit int) ([]Record, error) {
	query := `SELECT id, task_key, input_path, is_analyze, status, error, output_file_count, need_fix, unrepairable,
		issue_total, issue_types, elapsed_ms, created_at FROM fix_runs`
	var args []interface{}
	if inputPath != "" {
		query += ` WHERE input_path = ?`
		args = append(args, inputPath)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                              Record
			status, issueTypes             string
			analyze, needFix, unrepairable int
			createdAt                      int64
		)
		if err = rows.Scan(&r.Id, &r.TaskKey, &r.InputPath, &analyze, &status, &r.Error, &r.OutputFileCount,
			&needFix, &unrepairable, &r.IssueTotal, &issueTypes, &r.ElapsedMs, &createdAt); err != nil {
			return nil, err
		}
		if err = json.Unmarshal([]byte(issueTypes), &r.IssueTypes); err != nil {
			return nil, err
		}
		r.Status = fix.Status(status)
		r.Analyze = analyze != 0
		r.NeedFix = needFix != 0
		r.Unrepairable = unrepairable != 0
		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
