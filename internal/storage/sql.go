package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      device_type,
                      device_id,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions`

	insertSamplePrefixSQL = `
INSERT INTO samples (session_id,
                     timestamp,
                     band,
                     frequency,
                     bin_width,
                     power)
VALUES `

	insertDetectionPrefixSQL = `
INSERT INTO detections (session_id,
                        timestamp,
                        band,
                        freq_mhz,
                        freq_mhz_raw,
                        power_db,
                        power_db_raw,
                        cal_offset_db,
                        freq_ppm,
                        noise_floor_db)
VALUES `

	upsertSettingSQL = `
INSERT INTO settings (key, value)
VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`

	selectSettingSQL = `
SELECT value
FROM settings
WHERE key = ?`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_samples_session_time_freq ON samples (session_id, timestamp, frequency);
CREATE INDEX IF NOT EXISTS idx_detections_session_time ON detections (session_id, timestamp);`
)

//go:embed schema.sql
var initSchemaSQL string
