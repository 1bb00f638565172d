package db

// Schema contains all SQL statements for the notes database.
//
// Every owner-scoped table carries an explicit owner_id column; there is no
// ambient "current user". The favorites primary key is the uniqueness
// constraint that makes concurrent favorite inserts safe: both writers may
// attempt the insert, only one row survives, and the loser is treated as
// success by the index layer.
const Schema = `
-- Accounts table: registered identities
CREATE TABLE IF NOT EXISTS accounts (
    user_id TEXT PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    last_login INTEGER
);

-- Notes table: owner-scoped note records.
-- is_favorite is a denormalized cache of favorite state; the favorites
-- table is the source of truth and wins on divergence.
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    is_favorite INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_owner_created ON notes(owner_id, created_at DESC);

-- Favorites table: one row per (owner, note) relation
CREATE TABLE IF NOT EXISTS favorites (
    owner_id TEXT NOT NULL,
    note_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (owner_id, note_id)
);
CREATE INDEX IF NOT EXISTS idx_favorites_note_id ON favorites(note_id);
`
