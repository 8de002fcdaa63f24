package database

import (
	"context"
	"database/sql"
	"fmt"
)

// UserSettings mirrors the user_settings table. GetUserSettings returns the
// documented defaults when no row exists yet for a user.
type UserSettings struct {
	UserID        int64
	Theme         string
	Language      string
	BGMMute       bool
	BGMVolume     int
	EffectMute    bool
	EffectVolume  int
	InviteNotif   bool
	FriendNotif   bool
	SystemNotif   bool
}

func defaultSettings(userID int64) *UserSettings {
	return &UserSettings{
		UserID:       userID,
		Theme:        "light",
		Language:     "en",
		BGMVolume:    80,
		EffectVolume: 80,
		InviteNotif:  true,
		FriendNotif:  true,
		SystemNotif:  true,
	}
}

// GetUserSettings returns the stored settings for userID, or spec-mandated
// defaults when the row does not exist.
func (g *Gateway) GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error) {
	return runBreaker(g, func() (*UserSettings, error) {
		query := fmt.Sprintf(`
			SELECT user_id, theme, language, bgm_mute, bgm_volume, effect_mute, effect_volume,
			       invite_notif, friend_notif, system_notif
			FROM user_settings WHERE user_id = %s`, g.placeholder(1))

		s := &UserSettings{}
		err := g.db.QueryRowContext(ctx, query, userID).Scan(
			&s.UserID, &s.Theme, &s.Language, &s.BGMMute, &s.BGMVolume, &s.EffectMute, &s.EffectVolume,
			&s.InviteNotif, &s.FriendNotif, &s.SystemNotif)
		if err == sql.ErrNoRows {
			return defaultSettings(userID), nil
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// UpdateUserSettings upserts a full settings row for userID.
func (g *Gateway) UpdateUserSettings(ctx context.Context, s *UserSettings) error {
	_, err := runBreaker(g, func() (struct{}, error) {
		var query string
		if g.dialect == "postgres" {
			query = `
				INSERT INTO user_settings
					(user_id, theme, language, bgm_mute, bgm_volume, effect_mute, effect_volume,
					 invite_notif, friend_notif, system_notif)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (user_id) DO UPDATE SET
					theme = EXCLUDED.theme, language = EXCLUDED.language,
					bgm_mute = EXCLUDED.bgm_mute, bgm_volume = EXCLUDED.bgm_volume,
					effect_mute = EXCLUDED.effect_mute, effect_volume = EXCLUDED.effect_volume,
					invite_notif = EXCLUDED.invite_notif, friend_notif = EXCLUDED.friend_notif,
					system_notif = EXCLUDED.system_notif`
		} else {
			query = `
				INSERT INTO user_settings
					(user_id, theme, language, bgm_mute, bgm_volume, effect_mute, effect_volume,
					 invite_notif, friend_notif, system_notif)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(user_id) DO UPDATE SET
					theme = excluded.theme, language = excluded.language,
					bgm_mute = excluded.bgm_mute, bgm_volume = excluded.bgm_volume,
					effect_mute = excluded.effect_mute, effect_volume = excluded.effect_volume,
					invite_notif = excluded.invite_notif, friend_notif = excluded.friend_notif,
					system_notif = excluded.system_notif`
		}

		_, err := g.db.ExecContext(ctx, query,
			s.UserID, s.Theme, s.Language, s.BGMMute, s.BGMVolume, s.EffectMute, s.EffectVolume,
			s.InviteNotif, s.FriendNotif, s.SystemNotif)
		return struct{}{}, err
	})
	return err
}

// DeleteUserSettings removes a user's settings row, reverting them to
// defaults on next read.
func (g *Gateway) DeleteUserSettings(ctx context.Context, userID int64) error {
	_, err := runBreaker(g, func() (struct{}, error) {
		query := fmt.Sprintf("DELETE FROM user_settings WHERE user_id = %s", g.placeholder(1))
		_, err := g.db.ExecContext(ctx, query, userID)
		return struct{}{}, err
	})
	return err
}
