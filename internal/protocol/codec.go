package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Decoding fails closed: any packet that does not match a known variant
// exactly (opcode, sub-opcode, arity, field types) is rejected with one of
// these errors. The dispatcher drops and logs it; the connection survives.
var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrBadPacket     = errors.New("malformed packet")
)

// Marshal encodes a message to its positional wire form
// [opcode, fields...].
func Marshal(m Message) ([]byte, error) {
	packet := append([]any{int(m.Op())}, m.fields()...)
	data, err := json.Marshal(packet)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", m, err)
	}
	return data, nil
}

// Decode parses one wire packet into its typed variant, validating arity
// and field types before anything dispatches on it.
func Decode(data []byte) (Message, error) {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty packet", ErrBadPacket)
	}

	op, err := intField(raw, 0)
	if err != nil {
		return nil, err
	}
	if op < 0 || op >= int(opcodeCount) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, op)
	}

	fields := raw[1:]

	switch Opcode(op) {
	case OpHandshake:
		return decodeHandshake(fields)
	case OpIntro:
		return decodeIntro(fields)
	case OpWelcome:
		return decodeWelcome(fields)
	case OpSpawn:
		return decodeSpawn(fields)
	case OpList:
		return decodeList(fields)
	case OpWho:
		return decodeWho(fields)
	case OpEquipment:
		return decodeEquipment(fields)
	case OpReady:
		return decodeReady(fields)
	case OpDrop:
		return decodeDrop(fields)
	case OpMovement:
		return decodeMovement(fields)
	case OpTeleport:
		return decodeTeleport(fields)
	case OpRequest:
		return decodeRequest(fields)
	case OpDespawn:
		return decodeDespawn(fields)
	case OpTarget:
		return decodeTarget(fields)
	case OpCombat:
		return decodeCombat(fields)
	case OpProjectile:
		return decodeProjectile(fields)
	case OpAnimation:
		return decodeAnimation(fields)
	case OpChat:
		return decodeChat(fields)
	case OpNotification:
		return decodeNotification(fields)
	case OpSync:
		return decodeSync(fields)
	case OpHeal:
		return decodeHeal(fields)
	case OpExperience:
		return decodeExperience(fields)
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, op)
}

func decodeHandshake(f []any) (Message, error) {
	if err := arity(OpHandshake, f, 1); err != nil {
		return nil, err
	}
	version, err := intField(f, 0)
	if err != nil {
		return nil, err
	}
	return Handshake{Version: version}, nil
}

func decodeIntro(f []any) (Message, error) {
	if err := arity(OpIntro, f, 5); err != nil {
		return nil, err
	}
	sub, err := intField(f, 0)
	if err != nil {
		return nil, err
	}
	if sub != int(IntroLogin) && sub != int(IntroRegister) {
		return nil, fmt.Errorf("%w: intro sub-opcode %d", ErrUnknownOpcode, sub)
	}
	version, err := intField(f, 1)
	if err != nil {
		return nil, err
	}
	username, err := stringField(f, 2)
	if err != nil {
		return nil, err
	}
	password, err := stringField(f, 3)
	if err != nil {
		return nil, err
	}
	email, err := stringField(f, 4)
	if err != nil {
		return nil, err
	}
	return Intro{
		Type:     IntroOpcode(sub),
		Version:  version,
		Username: username,
		Password: password,
		Email:    email,
	}, nil
}

func decodeWelcome(f []any) (Message, error) {
	if err := arity(OpWelcome, f, 15); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	name, err := stringField(f, 1)
	if err != nil {
		return nil, err
	}
	ints, err := intFields(f, 2, 10)
	if err != nil {
		return nil, err
	}
	lastLogin, err := int64Field(f, 12)
	if err != nil {
		return nil, err
	}
	tail, err := intFields(f, 13, 2)
	if err != nil {
		return nil, err
	}
	return Welcome{
		Instance: instance, Name: name,
		X: ints[0], Y: ints[1], Kind: ints[2], Rights: ints[3],
		HP: ints[4], MaxHP: ints[5], MP: ints[6], MaxMP: ints[7],
		Exp: ints[8], Level: ints[9],
		LastLogin: lastLogin, PvpKills: tail[0], PvpDeaths: tail[1],
	}, nil
}

func decodeSpawn(f []any) (Message, error) {
	if err := arity(OpSpawn, f, 7); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	ints, err := intFields(f, 1, 5)
	if err != nil {
		return nil, err
	}
	name, err := stringField(f, 6)
	if err != nil {
		return nil, err
	}
	return Spawn{
		Instance: instance, ID: ints[0], Kind: ints[1],
		X: ints[2], Y: ints[3], Orientation: ints[4], Name: name,
	}, nil
}

func decodeList(f []any) (Message, error) {
	if err := arity(OpList, f, 1); err != nil {
		return nil, err
	}
	instances, err := instancesField(f, 0)
	if err != nil {
		return nil, err
	}
	return List{Instances: instances}, nil
}

func decodeWho(f []any) (Message, error) {
	if err := arity(OpWho, f, 1); err != nil {
		return nil, err
	}
	instances, err := instancesField(f, 0)
	if err != nil {
		return nil, err
	}
	return Who{Instances: instances}, nil
}

func decodeEquipment(f []any) (Message, error) {
	if len(f) < 1 {
		return nil, fmt.Errorf("%w: equipment without sub-opcode", ErrBadPacket)
	}
	sub, err := intField(f, 0)
	if err != nil {
		return nil, err
	}

	switch EquipmentOpcode(sub) {
	case EquipmentBatch:
		if err := arity(OpEquipment, f, 2); err != nil {
			return nil, err
		}
		batch, ok := f[1].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: equipment batch is not an array", ErrBadPacket)
		}
		pieces := make([]EquipmentPiece, 0, len(batch))
		for i, entry := range batch {
			tuple, ok := entry.([]any)
			if !ok || len(tuple) != 4 {
				return nil, fmt.Errorf("%w: equipment tuple %d", ErrBadPacket, i)
			}
			vals, err := intFields(tuple, 0, 4)
			if err != nil {
				return nil, err
			}
			pieces = append(pieces, EquipmentPiece{
				ID: vals[0], Count: vals[1], Ability: vals[2], AbilityLevel: vals[3],
			})
		}
		return Equipment{Type: EquipmentBatch, Pieces: pieces}, nil

	case EquipmentEquip:
		if err := arity(OpEquipment, f, 6); err != nil {
			return nil, err
		}
		vals, err := intFields(f, 1, 5)
		if err != nil {
			return nil, err
		}
		return Equipment{
			Type: EquipmentEquip,
			Slot: vals[0],
			Pieces: []EquipmentPiece{{
				ID: vals[1], Count: vals[2], Ability: vals[3], AbilityLevel: vals[4],
			}},
		}, nil

	case EquipmentUnequip:
		if err := arity(OpEquipment, f, 2); err != nil {
			return nil, err
		}
		slot, err := intField(f, 1)
		if err != nil {
			return nil, err
		}
		return Equipment{Type: EquipmentUnequip, Slot: slot}, nil
	}

	return nil, fmt.Errorf("%w: equipment sub-opcode %d", ErrUnknownOpcode, sub)
}

func decodeReady(f []any) (Message, error) {
	if err := arity(OpReady, f, 1); err != nil {
		return nil, err
	}
	ready, err := boolField(f, 0)
	if err != nil {
		return nil, err
	}
	return Ready{Ready: ready}, nil
}

func decodeDrop(f []any) (Message, error) {
	if err := arity(OpDrop, f, 5); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	ints, err := intFields(f, 1, 4)
	if err != nil {
		return nil, err
	}
	return Drop{Instance: instance, ID: ints[0], Count: ints[1], X: ints[2], Y: ints[3]}, nil
}

func decodeMovement(f []any) (Message, error) {
	if len(f) < 1 {
		return nil, fmt.Errorf("%w: movement without sub-opcode", ErrBadPacket)
	}
	sub, err := intField(f, 0)
	if err != nil {
		return nil, err
	}

	switch MovementOpcode(sub) {
	case MovementRequest:
		if err := arity(OpMovement, f, 5); err != nil {
			return nil, err
		}
		ints, err := intFields(f, 1, 4)
		if err != nil {
			return nil, err
		}
		return MoveRequest{RequestX: ints[0], RequestY: ints[1], ClientX: ints[2], ClientY: ints[3]}, nil

	case MovementStarted:
		if err := arity(OpMovement, f, 5); err != nil {
			return nil, err
		}
		ints, err := intFields(f, 1, 4)
		if err != nil {
			return nil, err
		}
		return MoveStarted{SelectedX: ints[0], SelectedY: ints[1], ClientX: ints[2], ClientY: ints[3]}, nil

	case MovementStep:
		if err := arity(OpMovement, f, 3); err != nil {
			return nil, err
		}
		ints, err := intFields(f, 1, 2)
		if err != nil {
			return nil, err
		}
		return MoveStep{X: ints[0], Y: ints[1]}, nil

	case MovementStop:
		if err := arity(OpMovement, f, 4); err != nil {
			return nil, err
		}
		ints, err := intFields(f, 1, 2)
		if err != nil {
			return nil, err
		}
		target, err := int64Field(f, 3)
		if err != nil {
			return nil, err
		}
		return MoveStop{X: ints[0], Y: ints[1], Target: target}, nil

	case MovementMove:
		if err := arity(OpMovement, f, 6); err != nil {
			return nil, err
		}
		instance, err := instanceField(f, 1)
		if err != nil {
			return nil, err
		}
		ints, err := intFields(f, 2, 2)
		if err != nil {
			return nil, err
		}
		forced, err := boolField(f, 4)
		if err != nil {
			return nil, err
		}
		teleport, err := boolField(f, 5)
		if err != nil {
			return nil, err
		}
		return Move{Instance: instance, X: ints[0], Y: ints[1], Forced: forced, Teleport: teleport}, nil

	case MovementFollow:
		if err := arity(OpMovement, f, 3); err != nil {
			return nil, err
		}
		instance, err := instanceField(f, 1)
		if err != nil {
			return nil, err
		}
		target, err := instanceField(f, 2)
		if err != nil {
			return nil, err
		}
		return Follow{Instance: instance, Target: target}, nil

	case MovementEntity:
		if err := arity(OpMovement, f, 4); err != nil {
			return nil, err
		}
		instance, err := instanceField(f, 1)
		if err != nil {
			return nil, err
		}
		ints, err := intFields(f, 2, 2)
		if err != nil {
			return nil, err
		}
		return MoveEntity{Instance: instance, X: ints[0], Y: ints[1]}, nil
	}

	return nil, fmt.Errorf("%w: movement sub-opcode %d", ErrUnknownOpcode, sub)
}

func decodeTeleport(f []any) (Message, error) {
	if err := arity(OpTeleport, f, 3); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	ints, err := intFields(f, 1, 2)
	if err != nil {
		return nil, err
	}
	return Teleport{Instance: instance, X: ints[0], Y: ints[1]}, nil
}

func decodeRequest(f []any) (Message, error) {
	if err := arity(OpRequest, f, 1); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	return Request{Instance: instance}, nil
}

func decodeDespawn(f []any) (Message, error) {
	if err := arity(OpDespawn, f, 1); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	return Despawn{Instance: instance}, nil
}

func decodeTarget(f []any) (Message, error) {
	if err := arity(OpTarget, f, 2); err != nil {
		return nil, err
	}
	sub, err := intField(f, 0)
	if err != nil {
		return nil, err
	}
	if sub < int(TargetTalk) || sub > int(TargetNone) {
		return nil, fmt.Errorf("%w: target sub-opcode %d", ErrUnknownOpcode, sub)
	}
	instance, err := instanceField(f, 1)
	if err != nil {
		return nil, err
	}
	return Target{Type: TargetOpcode(sub), Instance: instance}, nil
}

func decodeCombat(f []any) (Message, error) {
	if err := arity(OpCombat, f, 5); err != nil {
		return nil, err
	}
	sub, err := intField(f, 0)
	if err != nil {
		return nil, err
	}
	if sub < int(CombatInitiate) || sub > int(CombatFinish) {
		return nil, fmt.Errorf("%w: combat sub-opcode %d", ErrUnknownOpcode, sub)
	}
	attacker, err := int64Field(f, 1)
	if err != nil {
		return nil, err
	}
	target, err := int64Field(f, 2)
	if err != nil {
		return nil, err
	}
	kind, err := intField(f, 3)
	if err != nil {
		return nil, err
	}
	if kind < int(HitDamage) || kind > int(HitLevelUp) {
		return nil, fmt.Errorf("%w: hit kind %d", ErrBadPacket, kind)
	}
	amount, err := intField(f, 4)
	if err != nil {
		return nil, err
	}
	return Combat{
		Type: CombatOpcode(sub), Attacker: attacker, Target: target,
		Kind: HitKind(kind), Amount: amount,
	}, nil
}

func decodeProjectile(f []any) (Message, error) {
	if err := arity(OpProjectile, f, 6); err != nil {
		return nil, err
	}
	sub, err := intField(f, 0)
	if err != nil {
		return nil, err
	}
	if sub != int(ProjectileCreate) && sub != int(ProjectileImpact) {
		return nil, fmt.Errorf("%w: projectile sub-opcode %d", ErrUnknownOpcode, sub)
	}
	instance, err := instanceField(f, 1)
	if err != nil {
		return nil, err
	}
	id, err := intField(f, 2)
	if err != nil {
		return nil, err
	}
	owner, err := instanceField(f, 3)
	if err != nil {
		return nil, err
	}
	target, err := instanceField(f, 4)
	if err != nil {
		return nil, err
	}
	damage, err := intField(f, 5)
	if err != nil {
		return nil, err
	}
	return Projectile{
		Type: ProjectileOpcode(sub), Instance: instance, ID: id,
		Owner: owner, Target: target, Damage: damage,
	}, nil
}

func decodeAnimation(f []any) (Message, error) {
	if err := arity(OpAnimation, f, 2); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	action, err := intField(f, 1)
	if err != nil {
		return nil, err
	}
	return Animation{Instance: instance, Action: action}, nil
}

func decodeChat(f []any) (Message, error) {
	if err := arity(OpChat, f, 2); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	text, err := stringField(f, 1)
	if err != nil {
		return nil, err
	}
	return Chat{Instance: instance, Text: text}, nil
}

func decodeNotification(f []any) (Message, error) {
	if err := arity(OpNotification, f, 1); err != nil {
		return nil, err
	}
	reason, err := stringField(f, 0)
	if err != nil {
		return nil, err
	}
	return Notification{Reason: reason}, nil
}

func decodeSync(f []any) (Message, error) {
	if err := arity(OpSync, f, 7); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	ints, err := intFields(f, 1, 6)
	if err != nil {
		return nil, err
	}
	return Sync{
		Instance: instance, HP: ints[0], MaxHP: ints[1],
		MP: ints[2], MaxMP: ints[3], Exp: ints[4], Level: ints[5],
	}, nil
}

func decodeHeal(f []any) (Message, error) {
	if err := arity(OpHeal, f, 3); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	kind, err := stringField(f, 1)
	if err != nil {
		return nil, err
	}
	amount, err := intField(f, 2)
	if err != nil {
		return nil, err
	}
	return Heal{Instance: instance, Kind: kind, Amount: amount}, nil
}

func decodeExperience(f []any) (Message, error) {
	if err := arity(OpExperience, f, 3); err != nil {
		return nil, err
	}
	instance, err := instanceField(f, 0)
	if err != nil {
		return nil, err
	}
	ints, err := intFields(f, 1, 2)
	if err != nil {
		return nil, err
	}
	return Experience{Instance: instance, Amount: ints[0], Level: ints[1]}, nil
}

// Field helpers. encoding/json decodes every number as float64; integer
// fields must be whole numbers or the packet is rejected.

func arity(op Opcode, f []any, want int) error {
	if len(f) != want {
		return fmt.Errorf("%w: opcode %d has %d fields, want %d", ErrBadPacket, op, len(f), want)
	}
	return nil
}

func int64Field(f []any, i int) (int64, error) {
	if i >= len(f) {
		return 0, fmt.Errorf("%w: missing field %d", ErrBadPacket, i)
	}
	switch v := f[i].(type) {
	case float64:
		n := int64(v)
		if float64(n) != v {
			return 0, fmt.Errorf("%w: field %d is not an integer", ErrBadPacket, i)
		}
		return n, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	}
	return 0, fmt.Errorf("%w: field %d is not a number", ErrBadPacket, i)
}

func intField(f []any, i int) (int, error) {
	n, err := int64Field(f, i)
	return int(n), err
}

func intFields(f []any, start, count int) ([]int, error) {
	out := make([]int, count)
	for i := 0; i < count; i++ {
		n, err := intField(f, start+i)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func instanceField(f []any, i int) (uint32, error) {
	n, err := int64Field(f, i)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: field %d is not an instance id", ErrBadPacket, i)
	}
	return uint32(n), nil
}

func instancesField(f []any, i int) ([]uint32, error) {
	if i >= len(f) {
		return nil, fmt.Errorf("%w: missing field %d", ErrBadPacket, i)
	}
	raw, ok := f[i].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: field %d is not an array", ErrBadPacket, i)
	}
	out := make([]uint32, 0, len(raw))
	for j := range raw {
		inst, err := instanceField(raw, j)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func stringField(f []any, i int) (string, error) {
	if i >= len(f) {
		return "", fmt.Errorf("%w: missing field %d", ErrBadPacket, i)
	}
	s, ok := f[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: field %d is not a string", ErrBadPacket, i)
	}
	return s, nil
}

func boolField(f []any, i int) (bool, error) {
	if i >= len(f) {
		return false, fmt.Errorf("%w: missing field %d", ErrBadPacket, i)
	}
	b, ok := f[i].(bool)
	if !ok {
		return false, fmt.Errorf("%w: field %d is not a bool", ErrBadPacket, i)
	}
	return b, nil
}
