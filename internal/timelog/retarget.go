package timelog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// RetargetPlan says how a merge renamed things one side's time log refers to.
type RetargetPlan struct {
	// Side labels the run in the audit table ("main" or "incoming").
	Side string
	// ReportRev identifies the merge report the plan came from.
	ReportRev string
	// IDRemap sends old member ids to new ones.
	IDRemap map[int]int
	// InitialsRenames sends old initials to new ones.
	InitialsRenames map[string]string
	// DryRun counts the changes without writing them.
	DryRun bool
}

// RetargetResult counts what a retarget changed.
type RetargetResult struct {
	RunUUID         string `json:"run_uuid,omitempty" yaml:"run_uuid,omitempty"`
	EntriesChecked  int    `json:"entries_checked" yaml:"entries_checked"`
	IDsChanged      int    `json:"ids_changed" yaml:"ids_changed"`
	InitialsChanged int    `json:"initials_changed" yaml:"initials_changed"`
	DryRun          bool   `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// Retarget rewrites member ids and initials across every entry in a single
// transaction. Both maps are applied simultaneously to the values read before
// the run, so chains and swaps (a to b, b to a) resolve the way the merge
// meant them rather than cascading.
func (s *Store) Retarget(ctx context.Context, plan RetargetPlan) (*RetargetResult, error) {
	res := &RetargetResult{DryRun: plan.DryRun}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		type change struct {
			uuid     string
			memberID int
			initials string
		}
		var changes []change

		rows, err := tx.QueryContext(ctx, `SELECT uuid, member_id, initials FROM time_entries ORDER BY rowid`)
		if err != nil {
			return fmt.Errorf("failed to read time entries: %w", err)
		}
		for rows.Next() {
			var c change
			if err := rows.Scan(&c.uuid, &c.memberID, &c.initials); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan time entry: %w", err)
			}
			res.EntriesChecked++

			changed := false
			if to, ok := plan.IDRemap[c.memberID]; ok && to != c.memberID {
				c.memberID = to
				res.IDsChanged++
				changed = true
			}
			if to, ok := plan.InitialsRenames[c.initials]; ok && to != c.initials {
				c.initials = to
				res.InitialsChanged++
				changed = true
			}
			if changed {
				changes = append(changes, c)
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating time entries: %w", err)
		}

		if plan.DryRun {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			UPDATE time_entries
			SET member_id = ?, initials = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')
			WHERE uuid = ?
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare update: %w", err)
		}
		defer stmt.Close()
		for _, c := range changes {
			if _, err := stmt.ExecContext(ctx, c.memberID, c.initials, c.uuid); err != nil {
				return fmt.Errorf("failed to retarget entry %s: %w", c.uuid, err)
			}
		}

		res.RunUUID = uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO retarget_runs (uuid, side, report_rev, ids_changed, initials_changed)
			VALUES (?, ?, ?, ?, ?)
		`, res.RunUUID, plan.Side, plan.ReportRev, res.IDsChanged, res.InitialsChanged)
		if err != nil {
			return fmt.Errorf("failed to record retarget run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
