package database

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    username           TEXT UNIQUE NOT NULL,
    display_name       TEXT NOT NULL,
    password_hash      TEXT NOT NULL DEFAULT '',
    external_subject   TEXT UNIQUE,
    total_games        INTEGER NOT NULL DEFAULT 0,
    wins               INTEGER NOT NULL DEFAULT 0,
    losses             INTEGER NOT NULL DEFAULT 0,
    draws              INTEGER NOT NULL DEFAULT 0,
    level              INTEGER NOT NULL DEFAULT 1,
    experience_points  INTEGER NOT NULL DEFAULT 0,
    total_score        INTEGER NOT NULL DEFAULT 0,
    best_score         INTEGER NOT NULL DEFAULT 0,
    is_active          BOOLEAN NOT NULL DEFAULT 1,
    last_login         TIMESTAMP,
    created_at         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id        INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    theme          TEXT NOT NULL DEFAULT 'light',
    language       TEXT NOT NULL DEFAULT 'en',
    bgm_mute       BOOLEAN NOT NULL DEFAULT 0,
    bgm_volume     INTEGER NOT NULL DEFAULT 80,
    effect_mute    BOOLEAN NOT NULL DEFAULT 0,
    effect_volume  INTEGER NOT NULL DEFAULT 80,
    invite_notif   BOOLEAN NOT NULL DEFAULT 1,
    friend_notif   BOOLEAN NOT NULL DEFAULT 1,
    system_notif   BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS games (
    id          TEXT PRIMARY KEY,
    finished_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    is_draw     BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS game_participants (
    game_id    TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    score      INTEGER NOT NULL DEFAULT 0,
    is_winner  BOOLEAN NOT NULL DEFAULT 0,
    PRIMARY KEY (game_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE INDEX IF NOT EXISTS idx_game_participants_user ON game_participants(user_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id                 SERIAL PRIMARY KEY,
    username           TEXT UNIQUE NOT NULL,
    display_name       TEXT NOT NULL,
    password_hash      TEXT NOT NULL DEFAULT '',
    external_subject   TEXT UNIQUE,
    total_games        INTEGER NOT NULL DEFAULT 0,
    wins               INTEGER NOT NULL DEFAULT 0,
    losses             INTEGER NOT NULL DEFAULT 0,
    draws              INTEGER NOT NULL DEFAULT 0,
    level              INTEGER NOT NULL DEFAULT 1,
    experience_points  INTEGER NOT NULL DEFAULT 0,
    total_score        INTEGER NOT NULL DEFAULT 0,
    best_score         INTEGER NOT NULL DEFAULT 0,
    is_active          BOOLEAN NOT NULL DEFAULT TRUE,
    last_login         TIMESTAMP,
    created_at         TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id        INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    theme          TEXT NOT NULL DEFAULT 'light',
    language       TEXT NOT NULL DEFAULT 'en',
    bgm_mute       BOOLEAN NOT NULL DEFAULT FALSE,
    bgm_volume     INTEGER NOT NULL DEFAULT 80,
    effect_mute    BOOLEAN NOT NULL DEFAULT FALSE,
    effect_volume  INTEGER NOT NULL DEFAULT 80,
    invite_notif   BOOLEAN NOT NULL DEFAULT TRUE,
    friend_notif   BOOLEAN NOT NULL DEFAULT TRUE,
    system_notif   BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS games (
    id          TEXT PRIMARY KEY,
    finished_at TIMESTAMP NOT NULL DEFAULT NOW(),
    is_draw     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS game_participants (
    game_id    TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    score      INTEGER NOT NULL DEFAULT 0,
    is_winner  BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (game_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE INDEX IF NOT EXISTS idx_game_participants_user ON game_participants(user_id);
`
