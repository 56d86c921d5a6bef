package trainengine

const schema = `
CREATE TABLE IF NOT EXISTS trains (
	id TEXT PRIMARY KEY,
	uid TEXT NOT NULL,
	start_date TEXT NOT NULL,
	stp_indicator INTEGER NOT NULL,
	source INTEGER NOT NULL,
	date TEXT NOT NULL,
	trust_id TEXT,
	darwin_rid TEXT,
	headcode TEXT,
	crosses_midnight INTEGER NOT NULL DEFAULT 0,
	terminated INTEGER NOT NULL DEFAULT 0,
	cancelled INTEGER NOT NULL DEFAULT 0,
	activated INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trains_activation_key ON trains(uid, start_date, stp_indicator, source, date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trains_darwin_rid ON trains(darwin_rid) WHERE darwin_rid IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_trains_trust_id ON trains(trust_id, date);

CREATE TABLE IF NOT EXISTS train_movements (
	id TEXT PRIMARY KEY,
	train_id TEXT NOT NULL REFERENCES trains(id) ON DELETE CASCADE,
	updates TEXT REFERENCES train_movements(id) ON DELETE CASCADE,
	tiploc TEXT NOT NULL,
	action INTEGER NOT NULL,
	actual INTEGER NOT NULL DEFAULT 0,
	time INTEGER NOT NULL,
	day_offset INTEGER NOT NULL,
	public_time INTEGER,
	source INTEGER NOT NULL,
	platform TEXT,
	platform_suppress INTEGER NOT NULL DEFAULT 0,
	unknown_delay INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tm_identity ON train_movements(train_id, updates, tiploc, action, time, day_offset, source);
CREATE INDEX IF NOT EXISTS idx_tm_baseline ON train_movements(train_id, updates, tiploc, day_offset, time);
CREATE INDEX IF NOT EXISTS idx_tm_updates ON train_movements(updates);
CREATE INDEX IF NOT EXISTS idx_tm_tiploc ON train_movements(tiploc, day_offset, time);
`
