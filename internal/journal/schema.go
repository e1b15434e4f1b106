package journal

const Schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id              TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	action          TEXT NOT NULL,
	recommended     TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	mode            TEXT NOT NULL,
	confidence      INTEGER NOT NULL,
	risk_level      TEXT NOT NULL,
	position_size   REAL NOT NULL,
	stop_loss       REAL NOT NULL,
	take_profit     REAL NOT NULL,
	reference_price REAL NOT NULL,
	spread          REAL,
	verified        INTEGER NOT NULL,
	sources         TEXT NOT NULL,
	rationale       TEXT NOT NULL,
	audit           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol, created_at);
`
