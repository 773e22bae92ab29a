package protocol

// Opcode is the first element of every wire message.
// The client and server share this table; adding an opcode requires a
// matching variant in message.go and an arm in Decode.
type Opcode int

const (
	OpHandshake Opcode = iota
	OpIntro
	OpWelcome
	OpSpawn
	OpList
	OpWho
	OpEquipment
	OpReady
	OpDrop
	OpMovement
	OpTeleport
	OpRequest
	OpDespawn
	OpTarget
	OpCombat
	OpProjectile
	OpAnimation
	OpChat
	OpNotification
	OpSync
	OpHeal
	OpExperience

	opcodeCount // sentinel, keep last
)

// IntroOpcode selects the login variant of an Intro message.
type IntroOpcode int

const (
	IntroLogin IntroOpcode = iota
	IntroRegister
)

// EquipmentOpcode selects the Equipment message variant.
type EquipmentOpcode int

const (
	EquipmentBatch EquipmentOpcode = iota
	EquipmentEquip
	EquipmentUnequip
)

// MovementOpcode selects the Movement message variant.
type MovementOpcode int

const (
	MovementRequest MovementOpcode = iota
	MovementStarted
	MovementStep
	MovementStop
	MovementMove
	MovementFollow
	MovementEntity
)

// TargetOpcode selects the Target message variant.
type TargetOpcode int

const (
	TargetTalk TargetOpcode = iota
	TargetAttack
	TargetNone
)

// CombatOpcode selects the Combat message variant.
type CombatOpcode int

const (
	CombatInitiate CombatOpcode = iota
	CombatHit
	CombatFinish
)

// ProjectileOpcode selects the Projectile message variant.
type ProjectileOpcode int

const (
	ProjectileCreate ProjectileOpcode = iota
	ProjectileImpact
)

// HitKind classifies one resolved combat event carried by a Combat Hit
// message. The combat engine produces these; the client renders them.
type HitKind int

const (
	HitDamage HitKind = iota
	HitPoison
	HitHeal
	HitMana
	HitExperience
	HitLevelUp
)

// NoInstance is the wire sentinel for "no entity at this position".
// Optional instance fields are never omitted; they carry this value.
const NoInstance = -1
