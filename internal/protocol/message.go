package protocol

// Message is one decoded wire message. Every opcode/sub-opcode pair has
// exactly one variant type, and every variant encodes back to the exact
// positional shape Decode accepts; optional fields are carried as
// sentinels, never omitted.
type Message interface {
	// Op returns the leading opcode of the message.
	Op() Opcode
	// fields returns the positional payload following the opcode.
	fields() []any
}

// Handshake opens a session: the server announces its protocol version and
// the client must echo it in Intro before any game packet is accepted.
type Handshake struct {
	Version int
}

func (Handshake) Op() Opcode      { return OpHandshake }
func (m Handshake) fields() []any { return []any{m.Version} }

// Intro carries login or registration credentials. Email is empty for
// plain logins.
type Intro struct {
	Type     IntroOpcode
	Version  int
	Username string
	Password string
	Email    string
}

func (Intro) Op() Opcode { return OpIntro }
func (m Intro) fields() []any {
	return []any{int(m.Type), m.Version, m.Username, m.Password, m.Email}
}

// Welcome delivers the full player sheet after a successful login.
type Welcome struct {
	Instance  uint32
	Name      string
	X, Y      int
	Kind      int
	Rights    int
	HP, MaxHP int
	MP, MaxMP int
	Exp       int
	Level     int
	LastLogin int64
	PvpKills  int
	PvpDeaths int
}

func (Welcome) Op() Opcode { return OpWelcome }
func (m Welcome) fields() []any {
	return []any{int64(m.Instance), m.Name, m.X, m.Y, m.Kind, m.Rights,
		m.HP, m.MaxHP, m.MP, m.MaxMP, m.Exp, m.Level, m.LastLogin,
		m.PvpKills, m.PvpDeaths}
}

// Spawn announces one entity appearing in an observer's view.
type Spawn struct {
	Instance    uint32
	ID          int
	Kind        int
	X, Y        int
	Orientation int
	Name        string
}

func (Spawn) Op() Opcode { return OpSpawn }
func (m Spawn) fields() []any {
	return []any{int64(m.Instance), m.ID, m.Kind, m.X, m.Y, m.Orientation, m.Name}
}

// List tells a client which entity instances exist nearby; the client
// answers with Who for the ones it has no state for.
type List struct {
	Instances []uint32
}

func (List) Op() Opcode      { return OpList }
func (m List) fields() []any { return []any{encodeInstances(m.Instances)} }

// Who asks the server to re-send Spawn data for the listed instances.
type Who struct {
	Instances []uint32
}

func (Who) Op() Opcode      { return OpWho }
func (m Who) fields() []any { return []any{encodeInstances(m.Instances)} }

// EquipmentPiece is one equipment slot as persisted and as sent on the
// wire: item id, stack count, ability and ability level.
type EquipmentPiece struct {
	ID           int
	Count        int
	Ability      int
	AbilityLevel int
}

func (p EquipmentPiece) tuple() []any {
	return []any{p.ID, p.Count, p.Ability, p.AbilityLevel}
}

// Equipment carries the Batch/Equip/Unequip variants. Batch always sends
// all five slots in armour/weapon/pendant/ring/boots order.
type Equipment struct {
	Type   EquipmentOpcode
	Slot   int
	Pieces []EquipmentPiece
}

func (Equipment) Op() Opcode { return OpEquipment }
func (m Equipment) fields() []any {
	switch m.Type {
	case EquipmentBatch:
		batch := make([]any, 0, len(m.Pieces))
		for _, p := range m.Pieces {
			batch = append(batch, p.tuple())
		}
		return []any{int(m.Type), batch}
	case EquipmentEquip:
		p := EquipmentPiece{}
		if len(m.Pieces) > 0 {
			p = m.Pieces[0]
		}
		return []any{int(m.Type), m.Slot, p.ID, p.Count, p.Ability, p.AbilityLevel}
	default:
		return []any{int(m.Type), m.Slot}
	}
}

// Ready signals the client finished loading and may receive world state.
type Ready struct {
	Ready bool
}

func (Ready) Op() Opcode      { return OpReady }
func (m Ready) fields() []any { return []any{m.Ready} }

// Drop announces an item entity placed on the ground.
type Drop struct {
	Instance uint32
	ID       int
	Count    int
	X, Y     int
}

func (Drop) Op() Opcode { return OpDrop }
func (m Drop) fields() []any {
	return []any{int64(m.Instance), m.ID, m.Count, m.X, m.Y}
}

// MoveRequest is the client asking to path toward (RequestX, RequestY).
// ClientX/ClientY carry where the client believes it currently stands;
// the server discards the request if they disagree with its own state.
type MoveRequest struct {
	RequestX, RequestY int
	ClientX, ClientY   int
}

func (MoveRequest) Op() Opcode { return OpMovement }
func (m MoveRequest) fields() []any {
	return []any{int(MovementRequest), m.RequestX, m.RequestY, m.ClientX, m.ClientY}
}

// MoveStarted marks the beginning of a validated walk.
type MoveStarted struct {
	SelectedX, SelectedY int
	ClientX, ClientY     int
}

func (MoveStarted) Op() Opcode { return OpMovement }
func (m MoveStarted) fields() []any {
	return []any{int(MovementStarted), m.SelectedX, m.SelectedY, m.ClientX, m.ClientY}
}

// MoveStep is one tile of an in-progress walk.
type MoveStep struct {
	X, Y int
}

func (MoveStep) Op() Opcode { return OpMovement }
func (m MoveStep) fields() []any {
	return []any{int(MovementStep), m.X, m.Y}
}

// MoveStop ends a walk at (X, Y). Target carries the instance of an item
// entity on the destination tile, or NoInstance.
type MoveStop struct {
	X, Y   int
	Target int64
}

func (MoveStop) Op() Opcode { return OpMovement }
func (m MoveStop) fields() []any {
	return []any{int(MovementStop), m.X, m.Y, m.Target}
}

// Move is the server relocating an entity for all observers.
type Move struct {
	Instance uint32
	X, Y     int
	Forced   bool
	Teleport bool
}

func (Move) Op() Opcode { return OpMovement }
func (m Move) fields() []any {
	return []any{int(MovementMove), int64(m.Instance), m.X, m.Y, m.Forced, m.Teleport}
}

// Follow hints observers that Instance is chasing Target.
type Follow struct {
	Instance uint32
	Target   uint32
}

func (Follow) Op() Opcode { return OpMovement }
func (m Follow) fields() []any {
	return []any{int(MovementFollow), int64(m.Instance), int64(m.Target)}
}

// MoveEntity is a client-observed position report for a non-player entity.
type MoveEntity struct {
	Instance uint32
	X, Y     int
}

func (MoveEntity) Op() Opcode { return OpMovement }
func (m MoveEntity) fields() []any {
	return []any{int(MovementEntity), int64(m.Instance), m.X, m.Y}
}

// Teleport relocates an entity instantly (doors, admin moves).
type Teleport struct {
	Instance uint32
	X, Y     int
}

func (Teleport) Op() Opcode { return OpTeleport }
func (m Teleport) fields() []any {
	return []any{int64(m.Instance), m.X, m.Y}
}

// Request asks the server to re-send the nearby entity list.
type Request struct {
	Instance uint32
}

func (Request) Op() Opcode      { return OpRequest }
func (m Request) fields() []any { return []any{int64(m.Instance)} }

// Despawn removes an entity from observers' views.
type Despawn struct {
	Instance uint32
}

func (Despawn) Op() Opcode      { return OpDespawn }
func (m Despawn) fields() []any { return []any{int64(m.Instance)} }

// Target is the client selecting an entity (talk, attack, deselect).
type Target struct {
	Type     TargetOpcode
	Instance uint32
}

func (Target) Op() Opcode { return OpTarget }
func (m Target) fields() []any {
	return []any{int(m.Type), int64(m.Instance)}
}

// Combat carries Initiate/Hit/Finish. Attacker and Target use NoInstance
// when one side is already gone. Kind and Amount are meaningful only for
// the Hit variant and ride as zero otherwise.
type Combat struct {
	Type     CombatOpcode
	Attacker int64
	Target   int64
	Kind     HitKind
	Amount   int
}

func (Combat) Op() Opcode { return OpCombat }
func (m Combat) fields() []any {
	return []any{int(m.Type), m.Attacker, m.Target, int(m.Kind), m.Amount}
}

// Projectile carries Create/Impact for ranged combat reconciliation.
// Unused fields ride as zero on Impact.
type Projectile struct {
	Type     ProjectileOpcode
	Instance uint32
	ID       int
	Owner    uint32
	Target   uint32
	Damage   int
}

func (Projectile) Op() Opcode { return OpProjectile }
func (m Projectile) fields() []any {
	return []any{int(m.Type), int64(m.Instance), m.ID, int64(m.Owner),
		int64(m.Target), m.Damage}
}

// Animation plays a one-shot action on an entity.
type Animation struct {
	Instance uint32
	Action   int
}

func (Animation) Op() Opcode { return OpAnimation }
func (m Animation) fields() []any {
	return []any{int64(m.Instance), m.Action}
}

// Chat is a public message from an entity.
type Chat struct {
	Instance uint32
	Text     string
}

func (Chat) Op() Opcode { return OpChat }
func (m Chat) fields() []any {
	return []any{int64(m.Instance), m.Text}
}

// Notification is a session-level notice ("updated", "loggedin",
// "invalidlogin", ...) usually followed by a close.
type Notification struct {
	Reason string
}

func (Notification) Op() Opcode      { return OpNotification }
func (m Notification) fields() []any { return []any{m.Reason} }

// Sync refreshes an entity's vitals for all observers.
type Sync struct {
	Instance  uint32
	HP, MaxHP int
	MP, MaxMP int
	Exp       int
	Level     int
}

func (Sync) Op() Opcode { return OpSync }
func (m Sync) fields() []any {
	return []any{int64(m.Instance), m.HP, m.MaxHP, m.MP, m.MaxMP, m.Exp, m.Level}
}

// Heal shows a healing effect on an entity ("health" or "mana").
type Heal struct {
	Instance uint32
	Kind     string
	Amount   int
}

func (Heal) Op() Opcode { return OpHeal }
func (m Heal) fields() []any {
	return []any{int64(m.Instance), m.Kind, m.Amount}
}

// Experience awards experience and reports the resulting level.
type Experience struct {
	Instance uint32
	Amount   int
	Level    int
}

func (Experience) Op() Opcode { return OpExperience }
func (m Experience) fields() []any {
	return []any{int64(m.Instance), m.Amount, m.Level}
}

func encodeInstances(instances []uint32) []any {
	out := make([]any, 0, len(instances))
	for _, inst := range instances {
		out = append(out, int64(inst))
	}
	return out
}
