package store

import "context"

// UpsertDevice inserts a device row with last_seen=now(), or touches
// last_seen if it already exists. Devices are never deleted by the
// router (spec.md §3 lifecycle).
func (s *Store) UpsertDevice(ctx context.Context, deviceName string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO devices (device_name, last_seen) VALUES (?, ?)
			ON CONFLICT(device_name) DO UPDATE SET last_seen = excluded.last_seen
		`, deviceName, now())
		return err
	})
}

// GetDevice returns the device row, or nil if it does not exist.
func (s *Store) GetDevice(ctx context.Context, deviceName string) (*Device, error) {
	var d Device
	err := s.withRetry(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `SELECT device_name, last_seen FROM devices WHERE device_name = ?`, deviceName)
		return row.Scan(&d.DeviceName, &d.LastSeen)
	})
	if err != nil {
		return nil, nilOnNoRows(err)
	}
	return &d, nil
}

// SelectDevices returns every device row, ordered by device_name.
func (s *Store) SelectDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `SELECT device_name, last_seen FROM devices ORDER BY device_name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		devices = nil
		for rows.Next() {
			var d Device
			if err := rows.Scan(&d.DeviceName, &d.LastSeen); err != nil {
				return err
			}
			devices = append(devices, d)
		}
		return rows.Err()
	})
	return devices, err
}
