package combat

import (
	"math/rand"

	"github.com/udisondev/realmgo/internal/model"
)

// DamageCalculator computes how hard one character hits another. The
// numeric tables behind it are content data, not engine logic, so the
// engine only ever calls through this interface.
type DamageCalculator interface {
	Damage(attacker, target *model.Character) int
}

// FormulaDamage is the default calculator: weapon level scales the dealt
// roll, armor level scales the absorbed roll. A fully absorbed swing still
// chips for a small random amount so fights cannot stall forever.
type FormulaDamage struct{}

func (FormulaDamage) Damage(attacker, target *model.Character) int {
	dealt := attacker.WeaponLevel() * (5 + rand.Intn(6))
	absorbed := target.ArmorLevel() * (1 + rand.Intn(3))

	if dmg := dealt - absorbed; dmg > 0 {
		return dmg
	}
	return rand.Intn(4)
}

// FixedDamage always returns the same amount. Test calculator.
type FixedDamage int

func (f FixedDamage) Damage(_, _ *model.Character) int { return int(f) }
