package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/realmgo/internal/model"
)

// ErrCharacterNotFound is returned when no sheet exists for the name.
var ErrCharacterNotFound = errors.New("character not found")

// CharacterRepository persists character sheets. Load happens once at
// login; Save fires after equips, level ups and periodic syncs and must
// never block gameplay; callers log failures and move on.
type CharacterRepository struct {
	pool *pgxpool.Pool
}

// NewCharacterRepository creates a repository over an existing pool.
func NewCharacterRepository(pool *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{pool: pool}
}

const characterColumns = `
	name, kind, rights, experience, ban_until, mute_until, membership,
	last_login, pvp_kills, pvp_deaths, x, y,
	armour_id, armour_count, armour_ability, armour_ability_level,
	weapon_id, weapon_count, weapon_ability, weapon_ability_level,
	pendant_id, pendant_count, pendant_ability, pendant_ability_level,
	ring_id, ring_count, ring_ability, ring_ability_level,
	boots_id, boots_count, boots_ability, boots_ability_level`

// Load fetches the persisted sheet for a character name.
func (r *CharacterRepository) Load(ctx context.Context, name string) (model.CharacterRecord, error) {
	var rec model.CharacterRecord
	eq := &rec.Equipment

	err := r.pool.QueryRow(ctx,
		`SELECT`+characterColumns+` FROM characters WHERE name = $1`,
		strings.ToLower(name),
	).Scan(
		&rec.Name, &rec.Kind, &rec.Rights, &rec.Experience, &rec.BanUntil,
		&rec.MuteUntil, &rec.Membership, &rec.LastLogin, &rec.PvpKills,
		&rec.PvpDeaths, &rec.X, &rec.Y,
		&eq[model.SlotArmour].ID, &eq[model.SlotArmour].Count,
		&eq[model.SlotArmour].Ability, &eq[model.SlotArmour].AbilityLevel,
		&eq[model.SlotWeapon].ID, &eq[model.SlotWeapon].Count,
		&eq[model.SlotWeapon].Ability, &eq[model.SlotWeapon].AbilityLevel,
		&eq[model.SlotPendant].ID, &eq[model.SlotPendant].Count,
		&eq[model.SlotPendant].Ability, &eq[model.SlotPendant].AbilityLevel,
		&eq[model.SlotRing].ID, &eq[model.SlotRing].Count,
		&eq[model.SlotRing].Ability, &eq[model.SlotRing].AbilityLevel,
		&eq[model.SlotBoots].ID, &eq[model.SlotBoots].Count,
		&eq[model.SlotBoots].Ability, &eq[model.SlotBoots].AbilityLevel,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, ErrCharacterNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("loading character %q: %w", name, err)
	}
	return rec, nil
}

// Save upserts the full sheet. last_login is stamped server-side.
func (r *CharacterRepository) Save(ctx context.Context, rec model.CharacterRecord) error {
	eq := rec.Equipment
	_, err := r.pool.Exec(ctx,
		`INSERT INTO characters (`+characterColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		         $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24,
		         $25, $26, $27, $28, $29, $30, $31, $32)
		 ON CONFLICT (name) DO UPDATE SET
		     kind = EXCLUDED.kind,
		     rights = EXCLUDED.rights,
		     experience = EXCLUDED.experience,
		     ban_until = EXCLUDED.ban_until,
		     mute_until = EXCLUDED.mute_until,
		     membership = EXCLUDED.membership,
		     last_login = EXCLUDED.last_login,
		     pvp_kills = EXCLUDED.pvp_kills,
		     pvp_deaths = EXCLUDED.pvp_deaths,
		     x = EXCLUDED.x, y = EXCLUDED.y,
		     armour_id = EXCLUDED.armour_id,
		     armour_count = EXCLUDED.armour_count,
		     armour_ability = EXCLUDED.armour_ability,
		     armour_ability_level = EXCLUDED.armour_ability_level,
		     weapon_id = EXCLUDED.weapon_id,
		     weapon_count = EXCLUDED.weapon_count,
		     weapon_ability = EXCLUDED.weapon_ability,
		     weapon_ability_level = EXCLUDED.weapon_ability_level,
		     pendant_id = EXCLUDED.pendant_id,
		     pendant_count = EXCLUDED.pendant_count,
		     pendant_ability = EXCLUDED.pendant_ability,
		     pendant_ability_level = EXCLUDED.pendant_ability_level,
		     ring_id = EXCLUDED.ring_id,
		     ring_count = EXCLUDED.ring_count,
		     ring_ability = EXCLUDED.ring_ability,
		     ring_ability_level = EXCLUDED.ring_ability_level,
		     boots_id = EXCLUDED.boots_id,
		     boots_count = EXCLUDED.boots_count,
		     boots_ability = EXCLUDED.boots_ability,
		     boots_ability_level = EXCLUDED.boots_ability_level`,
		strings.ToLower(rec.Name), rec.Kind, rec.Rights, rec.Experience,
		rec.BanUntil, rec.MuteUntil, rec.Membership, time.Now(),
		rec.PvpKills, rec.PvpDeaths, rec.X, rec.Y,
		eq[model.SlotArmour].ID, eq[model.SlotArmour].Count,
		eq[model.SlotArmour].Ability, eq[model.SlotArmour].AbilityLevel,
		eq[model.SlotWeapon].ID, eq[model.SlotWeapon].Count,
		eq[model.SlotWeapon].Ability, eq[model.SlotWeapon].AbilityLevel,
		eq[model.SlotPendant].ID, eq[model.SlotPendant].Count,
		eq[model.SlotPendant].Ability, eq[model.SlotPendant].AbilityLevel,
		eq[model.SlotRing].ID, eq[model.SlotRing].Count,
		eq[model.SlotRing].Ability, eq[model.SlotRing].AbilityLevel,
		eq[model.SlotBoots].ID, eq[model.SlotBoots].Count,
		eq[model.SlotBoots].Ability, eq[model.SlotBoots].AbilityLevel,
	)
	if err != nil {
		return fmt.Errorf("saving character %q: %w", rec.Name, err)
	}
	return nil
}
