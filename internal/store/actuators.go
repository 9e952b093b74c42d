package store

import "context"

// UpsertActuator inserts or updates an actuator row. When f.HasState
// is false — the announce path, or a transient report the caller has
// already decided not to persist — the existing state column is
// preserved untouched. When f.HasState is true, State is written
// verbatim; a nil State in that case means "no terminal state
// observed yet" for a row that has never had one, which persists SQL
// NULL (spec.md §4.3).
func (s *Store) UpsertActuator(ctx context.Context, key ActuatorKey, f ActuatorFields) error {
	existing, err := s.GetActuator(ctx, key)
	if err != nil {
		return err
	}

	name := ""
	location := ""
	var state *int

	if existing != nil {
		name = existing.Name
		location = existing.Location
		state = existing.State
	}

	if f.Name != nil {
		name = *f.Name
	}
	if f.Location != nil {
		location = *f.Location
	}
	if f.HasState {
		state = f.State
	}

	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO actuators (device_name, id, name, location, state, last_seen)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(device_name, id) DO UPDATE SET
				name = excluded.name,
				location = excluded.location,
				state = excluded.state,
				last_seen = excluded.last_seen
		`, key.Device, key.ID, name, location, state, now())
		return err
	})
}

// GetActuator returns the actuator row, or nil if it does not exist.
func (s *Store) GetActuator(ctx context.Context, key ActuatorKey) (*Actuator, error) {
	var a Actuator
	err := s.withRetry(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `
			SELECT device_name, id, name, location, state, last_seen
			FROM actuators WHERE device_name = ? AND id = ?
		`, key.Device, key.ID)
		return row.Scan(&a.Device, &a.ID, &a.Name, &a.Location, &a.State, &a.LastSeen)
	})
	if err != nil {
		return nil, nilOnNoRows(err)
	}
	return &a, nil
}

// SelectActuators returns actuator rows, optionally filtered by device
// and by id, with the same filter semantics as SelectSensors.
func (s *Store) SelectActuators(ctx context.Context, device string, id int) ([]Actuator, error) {
	query := `SELECT device_name, id, name, location, state, last_seen FROM actuators WHERE 1=1`
	var args []any
	if device != "" {
		query += ` AND device_name = ?`
		args = append(args, device)
	}
	if id >= 0 {
		query += ` AND id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY device_name, id`

	var out []Actuator
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = nil
		for rows.Next() {
			var a Actuator
			if err := rows.Scan(&a.Device, &a.ID, &a.Name, &a.Location, &a.State, &a.LastSeen); err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}
