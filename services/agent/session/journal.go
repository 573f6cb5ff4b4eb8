// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/atlas/services/agent/impact"
	"github.com/AleutianAI/atlas/services/agent/intent"
	"github.com/AleutianAI/atlas/services/agent/plan"
)

// ErrNotFound is returned when no journaled approval exists for a
// session.
var ErrNotFound = errors.New("session: no pending approval journaled")

// approvalPrefix namespaces journal keys so the database can later
// carry other record kinds.
const approvalPrefix = "approval:"

// approvalTTL bounds how long an unanswered approval survives. A plan
// nobody answered in a day is stale; the graph and working tree have
// likely moved on.
const approvalTTL = 24 * time.Hour

// ApprovalRecord is the durable snapshot of a workflow blocked on the
// approval gate. Enough state to resume the edit phase after a restart
// without re-running intent, impact, or planning.
type ApprovalRecord struct {
	SessionID string        `json:"session_id"`
	RepoURL   string        `json:"repo_url"`
	RepoPath  string        `json:"repo_path"`
	ProjectID string        `json:"project_id"`
	Intent    intent.Intent `json:"intent"`
	Impact    impact.Result `json:"impact"`
	Plan      plan.Plan     `json:"plan"`
	CreatedAt time.Time     `json:"created_at"`
}

// Journal persists pending approvals in an embedded badger database.
//
// Thread Safety: safe for concurrent use; badger transactions provide
// the isolation.
type Journal struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLogger adapts slog to badger's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenJournal opens (creating if needed) the journal at path.
func OpenJournal(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, errors.New("session: journal path is required")
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("session: create journal directory %s: %w", path, err)
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("session: open journal: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

// OpenInMemoryJournal opens a journal that loses its contents on
// close. For tests.
func OpenInMemoryJournal(logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(&badgerLogger{logger: logger})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("session: open in-memory journal: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SaveApproval journals rec, replacing any prior record for the same
// session.
func (j *Journal) SaveApproval(rec ApprovalRecord) error {
	if rec.SessionID == "" {
		return errors.New("session: approval record needs a session ID")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal approval record: %w", err)
	}

	return j.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(approvalPrefix+rec.SessionID), payload).
			WithTTL(approvalTTL)
		return txn.SetEntry(entry)
	})
}

// LoadApproval returns the journaled record for sessionID, or
// ErrNotFound.
func (j *Journal) LoadApproval(sessionID string) (ApprovalRecord, error) {
	var rec ApprovalRecord
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(approvalPrefix + sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return ApprovalRecord{}, err
	}
	return rec, nil
}

// DeleteApproval removes the record for sessionID. Missing records are
// not an error; the gate may have been answered twice.
func (j *Journal) DeleteApproval(sessionID string) error {
	return j.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(approvalPrefix + sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// PendingApprovals returns every journaled record, oldest first.
func (j *Journal) PendingApprovals() ([]ApprovalRecord, error) {
	var recs []ApprovalRecord
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(approvalPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec ApprovalRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				key := strings.TrimPrefix(string(it.Item().Key()), approvalPrefix)
				j.logger.Warn("skipping unreadable approval record",
					"session_id", key, "error", err)
				continue
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: iterate approvals: %w", err)
	}

	for i := 1; i < len(recs); i++ {
		for k := i; k > 0 && recs[k].CreatedAt.Before(recs[k-1].CreatedAt); k-- {
			recs[k], recs[k-1] = recs[k-1], recs[k]
		}
	}
	return recs, nil
}
