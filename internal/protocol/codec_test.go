package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoundTrip covers every opcode/sub-opcode variant: encoding a message
// and decoding it must yield the original field values unchanged.
func TestRoundTrip(t *testing.T) {
	messages := []Message{
		Handshake{Version: 12},
		Intro{Type: IntroLogin, Version: 12, Username: "tachyon", Password: "hunter2", Email: ""},
		Intro{Type: IntroRegister, Version: 12, Username: "newbie", Password: "secret", Email: "n@example.com"},
		Welcome{
			Instance: 101, Name: "Tachyon", X: 46, Y: 88, Kind: 1, Rights: 2,
			HP: 90, MaxHP: 100, MP: 18, MaxMP: 20, Exp: 12500, Level: 14,
			LastLogin: 1487548800, PvpKills: 3, PvpDeaths: 1,
		},
		Spawn{Instance: 205, ID: 33, Kind: 2, X: 10, Y: 12, Orientation: 1, Name: "rat"},
		List{Instances: []uint32{101, 205, 333}},
		Who{Instances: []uint32{205}},
		Equipment{Type: EquipmentBatch, Pieces: []EquipmentPiece{
			{ID: 21, Count: 1, Ability: -1, AbilityLevel: -1},
			{ID: 61, Count: 1, Ability: 2, AbilityLevel: 3},
			{ID: -1, Count: 0, Ability: -1, AbilityLevel: -1},
			{ID: -1, Count: 0, Ability: -1, AbilityLevel: -1},
			{ID: -1, Count: 0, Ability: -1, AbilityLevel: -1},
		}},
		Equipment{Type: EquipmentEquip, Slot: 1, Pieces: []EquipmentPiece{
			{ID: 61, Count: 1, Ability: 2, AbilityLevel: 3},
		}},
		Equipment{Type: EquipmentUnequip, Slot: 4},
		Ready{Ready: true},
		Drop{Instance: 900, ID: 17, Count: 5, X: 40, Y: 41},
		MoveRequest{RequestX: 12, RequestY: 9, ClientX: 5, ClientY: 5},
		MoveStarted{SelectedX: 12, SelectedY: 9, ClientX: 5, ClientY: 5},
		MoveStep{X: 6, Y: 5},
		MoveStop{X: 12, Y: 9, Target: NoInstance},
		MoveStop{X: 12, Y: 9, Target: 900},
		Move{Instance: 205, X: 11, Y: 9, Forced: false, Teleport: false},
		Follow{Instance: 205, Target: 101},
		MoveEntity{Instance: 205, X: 14, Y: 9},
		Teleport{Instance: 101, X: 70, Y: 120},
		Request{Instance: 101},
		Despawn{Instance: 205},
		Target{Type: TargetTalk, Instance: 205},
		Target{Type: TargetAttack, Instance: 205},
		Target{Type: TargetNone, Instance: 0},
		Combat{Type: CombatInitiate, Attacker: 101, Target: 205},
		Combat{Type: CombatHit, Attacker: 101, Target: 205, Kind: HitDamage, Amount: 14},
		Combat{Type: CombatHit, Attacker: 101, Target: 101, Kind: HitHeal, Amount: 10},
		Combat{Type: CombatFinish, Attacker: 101, Target: NoInstance},
		Projectile{Type: ProjectileCreate, Instance: 501, ID: 2, Owner: 101, Target: 205, Damage: 9},
		Projectile{Type: ProjectileImpact, Instance: 501, Target: 205},
		Animation{Instance: 101, Action: 3},
		Chat{Instance: 101, Text: "hello there"},
		Notification{Reason: "updated"},
		Sync{Instance: 101, HP: 80, MaxHP: 100, MP: 20, MaxMP: 20, Exp: 12600, Level: 14},
		Heal{Instance: 101, Kind: "health", Amount: 25},
		Experience{Instance: 101, Amount: 120, Level: 15},
	}

	for _, msg := range messages {
		data, err := Marshal(msg)
		require.NoError(t, err, "marshal %T", msg)

		decoded, err := Decode(data)
		require.NoError(t, err, "decode %T from %s", msg, data)
		require.Equal(t, msg, decoded, "round trip %T", msg)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode([]byte(`[99, 1, 2]`))
	assert.ErrorIs(t, err, ErrUnknownOpcode)

	_, err = Decode([]byte(`[-1]`))
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestDecodeUnknownSubOpcode(t *testing.T) {
	// Movement with sub-opcode beyond the table.
	_, err := Decode([]byte(`[9, 42, 1, 2]`))
	assert.ErrorIs(t, err, ErrUnknownOpcode)

	// Combat with out-of-range sub-opcode.
	_, err = Decode([]byte(`[14, 7, 1, 2, 0, 5]`))
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		``,
		`{}`,
		`[]`,
		`["movement"]`,
		`[9, 0, 1, 2]`,          // movement request with wrong arity
		`[9, 2, "x", "y"]`,      // step with string coordinates
		`[0, 1.5]`,              // fractional version
		`[14, 1, 101, 205, 99, 5]`, // hit with invalid kind
		`[7, 1]`,                // ready with number instead of bool
		`[4, 3]`,                // list payload not an array
	}

	for _, raw := range cases {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrBadPacket, "input %q", raw)
	}
}

// A dropped packet must never be fatal: decode errors are plain values the
// dispatcher can log and ignore.
func TestDecodeErrorsAreValues(t *testing.T) {
	_, err := Decode([]byte(`[99]`))
	require.Error(t, err)
	if !errors.Is(err, ErrUnknownOpcode) && !errors.Is(err, ErrBadPacket) {
		t.Errorf("decode error %v is not a protocol error", err)
	}
}
