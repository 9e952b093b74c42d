package store

import "context"

// UpsertSensor inserts or updates a sensor row. Fields left nil in
// SensorFields are preserved from the existing row (used by the
// announce handler, which must not clobber a previously-reported
// value/unit with NULL per spec.md §4.2). Name/Location default to
// empty string on first insert when not supplied.
func (s *Store) UpsertSensor(ctx context.Context, key SensorKey, f SensorFields) error {
	existing, err := s.GetSensor(ctx, key)
	if err != nil {
		return err
	}

	name := ""
	location := ""
	var value, unit *string
	enabled := true

	if existing != nil {
		name = existing.Name
		location = existing.Location
		value = existing.Value
		unit = existing.Unit
		enabled = existing.Enabled
	}

	if f.Name != nil {
		name = *f.Name
	}
	if f.Location != nil {
		location = *f.Location
	}
	if f.Value != nil {
		value = f.Value
	}
	if f.Unit != nil {
		unit = f.Unit
	}
	if f.Enabled != nil {
		enabled = *f.Enabled
	}

	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sensors (device_name, id, name, location, value, unit, enabled, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(device_name, id) DO UPDATE SET
				name = excluded.name,
				location = excluded.location,
				value = excluded.value,
				unit = excluded.unit,
				enabled = excluded.enabled,
				last_seen = excluded.last_seen
		`, key.Device, key.ID, name, location, value, unit, boolToInt(enabled), now())
		return err
	})
}

// GetSensor returns the sensor row, or nil if it does not exist.
func (s *Store) GetSensor(ctx context.Context, key SensorKey) (*Sensor, error) {
	var sen Sensor
	var enabled int
	err := s.withRetry(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `
			SELECT device_name, id, name, location, value, unit, enabled, last_seen
			FROM sensors WHERE device_name = ? AND id = ?
		`, key.Device, key.ID)
		return row.Scan(&sen.Device, &sen.ID, &sen.Name, &sen.Location, &sen.Value, &sen.Unit, &enabled, &sen.LastSeen)
	})
	if err != nil {
		return nil, nilOnNoRows(err)
	}
	sen.Enabled = enabled != 0
	return &sen, nil
}

// SelectSensors returns sensor rows, optionally filtered by device and
// by id. A zero-value device means "all devices"; id < 0 means "all
// ids for the matched device(s)".
func (s *Store) SelectSensors(ctx context.Context, device string, id int) ([]Sensor, error) {
	query := `SELECT device_name, id, name, location, value, unit, enabled, last_seen FROM sensors WHERE 1=1`
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

	var out []Sensor
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = nil
		for rows.Next() {
			var sen Sensor
			var enabled int
			if err := rows.Scan(&sen.Device, &sen.ID, &sen.Name, &sen.Location, &sen.Value, &sen.Unit, &enabled, &sen.LastSeen); err != nil {
				return err
			}
			sen.Enabled = enabled != 0
			out = append(out, sen)
		}
		return rows.Err()
	})
	return out, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
