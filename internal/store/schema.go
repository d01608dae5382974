package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
    at                   INTEGER NOT NULL,
    day                  TEXT NOT NULL,
    home_id              TEXT NOT NULL,
    key                  TEXT NOT NULL,
    value                REAL,
    PRIMARY KEY (home_id, at, key)
);

CREATE TABLE IF NOT EXISTS peaks (
    at                   INTEGER NOT NULL,
    home_id              TEXT NOT NULL,
    rank                 INTEGER NOT NULL,
    hour                 TEXT NOT NULL,
    consumption          REAL NOT NULL,
    PRIMARY KEY (home_id, at, rank)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_day ON snapshots(home_id, day);
`
