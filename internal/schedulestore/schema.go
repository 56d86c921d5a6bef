package schedulestore

// schema is applied once at service startup. schedule_movements cascades
// on delete so Upsert's replace-wholesale path is one DELETE FROM
// schedules plus re-INSERT, not a manual movement sweep.
const schema = `
CREATE TABLE IF NOT EXISTS schedules (
	version_id TEXT PRIMARY KEY,
	uid TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	weekdays INTEGER NOT NULL,
	stp_indicator INTEGER NOT NULL,
	headcode TEXT,
	source INTEGER NOT NULL,
	file_sequence INTEGER,
	darwin_rid TEXT,
	crosses_midnight INTEGER NOT NULL,
	UNIQUE(uid, start_date, stp_indicator, source)
);
CREATE INDEX IF NOT EXISTS idx_schedules_uid ON schedules(uid);
CREATE INDEX IF NOT EXISTS idx_schedules_uid_source ON schedules(uid, source);

CREATE TABLE IF NOT EXISTS schedule_movements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	schedule_version_id TEXT NOT NULL REFERENCES schedules(version_id) ON DELETE CASCADE,
	tiploc TEXT NOT NULL,
	action INTEGER NOT NULL,
	working_time INTEGER NOT NULL,
	day_offset INTEGER NOT NULL,
	platform TEXT,
	public_time INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sm_order ON schedule_movements(schedule_version_id, day_offset, working_time, action);
CREATE INDEX IF NOT EXISTS idx_sm_tiploc ON schedule_movements(tiploc, day_offset, working_time);

CREATE TABLE IF NOT EXISTS ingest_files (
	stream TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	ts TEXT NOT NULL UNIQUE,
	PRIMARY KEY (stream, sequence)
);
`
