package store

import "context"

// UpsertAlert replaces the single alert row owned by (device,
// component_type, component_id). Unlike sensors/actuators, there is
// no partial preservation: each new alert overwrites the previous one
// in full (spec.md §4.4 and the alerts table's "latest-only" PK).
func (s *Store) UpsertAlert(ctx context.Context, key AlertKey, f AlertFields) error {
	severity := NormalizeSeverity(f.Severity)
	// No retry: spec.md §7 marks alerts as never-retry-on-DB-failure —
	// they are volatile by design and a new alert replaces whatever
	// would have been recovered by a retry anyway.
	c, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()
	return func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO alerts (device_name, component_type, component_id, component_name,
				location, status, message, severity, code, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(device_name, component_type, component_id) DO UPDATE SET
				component_name = excluded.component_name,
				location = excluded.location,
				status = excluded.status,
				message = excluded.message,
				severity = excluded.severity,
				code = excluded.code,
				timestamp = excluded.timestamp
		`, key.Device, key.ComponentType, key.ComponentID,
			f.ComponentName, f.Location, f.Status, f.Message, severity, f.Code, now())
		return err
	}(c)
}

// SelectAlerts returns alert rows ordered by severity DESC,
// timestamp DESC. limit <= 0 means no limit, matching spec.md §4.8's
// "limit=0 meaning no limit".
func (s *Store) SelectAlerts(ctx context.Context, limit int) ([]Alert, error) {
	query := `
		SELECT device_name, component_type, component_id, component_name, location,
			status, message, severity, code, timestamp
		FROM alerts
		ORDER BY CASE severity WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, timestamp DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []Alert
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = nil
		for rows.Next() {
			var a Alert
			if err := rows.Scan(&a.Device, &a.ComponentType, &a.ComponentID, &a.ComponentName,
				&a.Location, &a.Status, &a.Message, &a.Severity, &a.Code, &a.Timestamp); err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}
