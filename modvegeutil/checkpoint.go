/*
Copyright © 2022 the ModVege authors.
This file is part of ModVege.

ModVege is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ModVege is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ModVege.  If not, see <http://www.gnu.org/licenses/>.
*/

package modvegeutil

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/climag/modvege"
	"github.com/climag/modvege/internal/hash"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// CheckpointStore persists the state of each site at the end of a run so
// that a later run over the following period can continue from it
// instead of spinning up. Checkpoints are keyed by site and by a
// fingerprint of the site parameters, so a site whose parameters have
// changed is spun up again.
type CheckpointStore struct {
	db       *sql.DB
	mu       sync.Mutex
	prepared map[string]*sql.Stmt
	log      logrus.FieldLogger
}

// Checkpoint is the saved state of one site.
type Checkpoint struct {
	Site  string
	Date  time.Time // last simulated day
	State modvege.State
}

// OpenCheckpoints opens or creates a checkpoint database at path.
func OpenCheckpoints(path string, log logrus.FieldLogger) (*CheckpointStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("modvegeutil: creating checkpoint directory: %v", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("modvegeutil: opening checkpoint database: %v", err)
	}
	s := &CheckpointStore{db: db, prepared: make(map[string]*sql.Stmt), log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("modvegeutil: initializing checkpoint database: %v", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("modvegeutil: preparing checkpoint statements: %v", err)
	}
	return s, nil
}

func (s *CheckpointStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS checkpoints (
		site TEXT NOT NULL,
		params TEXT NOT NULL,
		date TEXT NOT NULL,
		state TEXT NOT NULL, -- JSON encoded modvege.State
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (site, params)
	);
	`)
	return err
}

func (s *CheckpointStore) prepareStatements() error {
	statements := map[string]string{
		"save": `INSERT OR REPLACE INTO checkpoints (site, params, date, state) VALUES (?, ?, ?, ?)`,
		"load": `SELECT date, state FROM checkpoints WHERE site = ? AND params = ?`,
	}
	for name, query := range statements {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("statement %s: %v", name, err)
		}
		s.prepared[name] = stmt
	}
	return nil
}

// ParameterKey returns the fingerprint of p used to key checkpoints.
func ParameterKey(p *modvege.SiteParameters) string { return hash.Hash(p) }

// Save stores the state of site after the day date, replacing any
// earlier checkpoint for the same site and parameters. Writes that find
// the database locked are retried.
func (s *CheckpointStore) Save(site string, p *modvege.SiteParameters, date time.Time, st modvege.State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("modvegeutil: encoding checkpoint for site %s: %v", site, err)
	}
	key := ParameterKey(p)
	var permanent error
	err = backoff.RetryNotify(
		func() error {
			s.mu.Lock()
			defer s.mu.Unlock()
			_, err := s.prepared["save"].Exec(site, key, date.Format("2006-01-02"), string(b))
			if err != nil && !isLocked(err) {
				permanent = err
				return nil
			}
			return err
		},
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10),
		func(err error, d time.Duration) {
			s.log.WithFields(logrus.Fields{"site": site, "retry": d}).Warn(err)
		},
	)
	if err == nil {
		err = permanent
	}
	if err != nil {
		return fmt.Errorf("modvegeutil: saving checkpoint for site %s: %v", site, err)
	}
	return nil
}

// Load returns the checkpoint of site for parameters p, or nil if there is
// none.
func (s *CheckpointStore) Load(site string, p *modvege.SiteParameters) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var date, state string
	err := s.prepared["load"].QueryRow(site, ParameterKey(p)).Scan(&date, &state)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("modvegeutil: loading checkpoint for site %s: %v", site, err)
	}
	c := &Checkpoint{Site: site}
	if c.Date, err = time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("modvegeutil: checkpoint for site %s: %v", site, err)
	}
	if err := json.Unmarshal([]byte(state), &c.State); err != nil {
		return nil, fmt.Errorf("modvegeutil: checkpoint for site %s: %v", site, err)
	}
	return c, nil
}

// Initial returns the state site should start from when its forcing
// begins on start, or nil if it must be spun up. A checkpoint is used
// only if it was saved on the day before start.
func (s *CheckpointStore) Initial(site string, p *modvege.SiteParameters, start time.Time) (*modvege.State, error) {
	c, err := s.Load(site, p)
	if err != nil || c == nil {
		return nil, err
	}
	if c.Date.AddDate(0, 0, 1).Format("2006-01-02") != start.Format("2006-01-02") {
		s.log.WithFields(logrus.Fields{
			"site":       site,
			"checkpoint": c.Date.Format("2006-01-02"),
			"start":      start.Format("2006-01-02"),
		}).Warn("checkpoint does not precede the forcing; spinning up instead")
		return nil, nil
	}
	return &c.State, nil
}

// Close closes the database.
func (s *CheckpointStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range s.prepared {
		stmt.Close()
	}
	return s.db.Close()
}

func isLocked(err error) bool {
	var e sqlite3.Error
	if errors.As(err, &e) {
		return e.Code == sqlite3.ErrBusy || e.Code == sqlite3.ErrLocked
	}
	return false
}
