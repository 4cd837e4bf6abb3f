package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atelierhq/atelier/internal/audit"
)

type auditStore struct{ s *Store }

var _ audit.Store = auditStore{}

func (st auditStore) Append(ctx context.Context, entry *audit.Entry) error {
	changes := []byte("{}")
	if len(entry.Changes) > 0 {
		raw, err := json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		changes = raw
	}
	_, err := st.s.db.ExecContext(ctx, `
		insert into audit_entries
			(id, action, actor_id, actor_name, target_type, target_id, changes, affected_count, origin, client_info, note, request_id, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, entry.ID, entry.Action, entry.ActorID, entry.ActorName, entry.TargetType, entry.TargetID,
		changes, entry.AffectedCount, entry.Origin, entry.ClientInfo, entry.Note, entry.RequestID, entry.CreatedAt)
	return err
}

func (st auditStore) List(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := st.s.db.QueryContext(ctx, `
		select id, action, actor_id, actor_name, target_type, target_id, changes, affected_count, origin, client_info, note, request_id, created_at
		from audit_entries
		order by created_at desc, id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry      audit.Entry
			rawChanges []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.ActorID, &entry.ActorName, &entry.TargetType, &entry.TargetID,
			&rawChanges, &entry.AffectedCount, &entry.Origin, &entry.ClientInfo, &entry.Note, &entry.RequestID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(rawChanges) > 0 {
			if err := json.Unmarshal(rawChanges, &entry.Changes); err != nil {
				return nil, fmt.Errorf("decode changes: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
