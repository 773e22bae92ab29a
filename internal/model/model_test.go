package model

import (
	"sync"
	"testing"
	"time"
)

func TestPositionDistance(t *testing.T) {
	a := Position{X: 5, Y: 5}

	cases := []struct {
		other Position
		want  int
	}{
		{Position{X: 5, Y: 5}, 0},
		{Position{X: 6, Y: 5}, 1},
		{Position{X: 6, Y: 6}, 1},
		{Position{X: 8, Y: 4}, 3},
		{Position{X: 1, Y: 9}, 4},
	}

	for _, tc := range cases {
		if got := a.Distance(tc.other); got != tc.want {
			t.Errorf("Distance(%v) = %d, want %d", tc.other, got, tc.want)
		}
	}
}

func TestPositionAdjacentNonDiagonal(t *testing.T) {
	a := Position{X: 5, Y: 5}

	if !a.AdjacentNonDiagonal(Position{X: 5, Y: 6}) {
		t.Error("cardinal neighbour not adjacent")
	}
	if a.AdjacentNonDiagonal(Position{X: 6, Y: 6}) {
		t.Error("diagonal neighbour counted as adjacent")
	}
	if a.AdjacentNonDiagonal(a) {
		t.Error("same tile counted as adjacent")
	}
	if a.AdjacentNonDiagonal(Position{X: 7, Y: 5}) {
		t.Error("two tiles away counted as adjacent")
	}
}

func TestCharacterDamageAndDeath(t *testing.T) {
	c := NewCharacter(NewEntity(1, 0, KindMob, "rat", Position{}), 30, 0)

	remaining, died := c.ApplyDamage(10)
	if remaining != 20 || died {
		t.Fatalf("ApplyDamage(10) = (%d, %v), want (20, false)", remaining, died)
	}

	remaining, died = c.ApplyDamage(50)
	if remaining != 0 || !died {
		t.Fatalf("lethal ApplyDamage = (%d, %v), want (0, true)", remaining, died)
	}

	// A second lethal hit must not report death again.
	_, died = c.ApplyDamage(5)
	if died {
		t.Error("second lethal hit reported died=true")
	}
}

// Only one of many concurrent lethal hits may observe the death.
func TestCharacterDeathReportedOnce(t *testing.T) {
	c := NewCharacter(NewEntity(1, 0, KindMob, "rat", Position{}), 1, 0)

	var wg sync.WaitGroup
	deaths := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, died := c.ApplyDamage(10); died {
				deaths <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(deaths)

	count := 0
	for range deaths {
		count++
	}
	if count != 1 {
		t.Errorf("death observed %d times, want 1", count)
	}
}

func TestPlayerEquipWeaponDerivesReach(t *testing.T) {
	p := NewPlayer(1, "Test", Position{X: 46, Y: 88})

	if p.IsRanged() {
		t.Fatal("bare player must be melee")
	}

	p.Equip(SlotWeapon, Equipment{ID: 61, Count: 1, Ability: AbilityRanged, AbilityLevel: 1})
	if !p.IsRanged() {
		t.Fatal("ranged weapon did not mark player ranged")
	}
	if got := p.AttackRange(); got != RangedAttackRange {
		t.Errorf("AttackRange() = %d, want %d", got, RangedAttackRange)
	}

	p.Equip(SlotWeapon, Equipment{ID: 21, Count: 1, Ability: -1, AbilityLevel: -1})
	if p.IsRanged() {
		t.Error("melee weapon left player ranged")
	}
}

func TestPlayerLoadRecord(t *testing.T) {
	p := NewPlayer(1, "Test", Position{})

	rec := CharacterRecord{
		Name:       "Test",
		Experience: LevelToExp(5),
		Rights:     1,
		LastLogin:  time.Unix(1487548800, 0),
		PvpKills:   2,
		X:          14,
		Y:          40,
	}
	for slot := range rec.Equipment {
		rec.Equipment[slot] = EmptyEquipment
	}
	p.Load(rec)

	if got := p.Level(); got != 5 {
		t.Errorf("Level() = %d, want 5", got)
	}
	if got := p.Position(); got != (Position{X: 14, Y: 40}) {
		t.Errorf("Position() = %v, want (14, 40)", got)
	}
	hp, maxHP := p.HP()
	if hp != maxHP || maxHP != MaxHitPoints(5) {
		t.Errorf("HP() = (%d, %d), want full at %d", hp, maxHP, MaxHitPoints(5))
	}
}

func TestAddExperienceLevels(t *testing.T) {
	p := NewPlayer(1, "Test", Position{})
	p.Load(CharacterRecord{Experience: 0})

	level, leveled := p.AddExperience(LevelToExp(2))
	if !leveled || level != 2 {
		t.Errorf("AddExperience to level 2 = (%d, %v)", level, leveled)
	}

	level, leveled = p.AddExperience(1)
	if leveled {
		t.Errorf("tiny experience award leveled to %d", level)
	}
}

func TestExpToLevelRoundTrip(t *testing.T) {
	for level := 1; level <= 20; level++ {
		if got := ExpToLevel(LevelToExp(level)); got != level {
			t.Errorf("ExpToLevel(LevelToExp(%d)) = %d", level, got)
		}
	}
}

func TestMobReturning(t *testing.T) {
	m := NewMob(7, 33, "rat", Position{X: 10, Y: 10}, 25)

	if m.DistanceToSpawn() != 0 {
		t.Fatal("fresh mob not at spawn")
	}

	m.SetPosition(Position{X: 14, Y: 10})
	if got := m.DistanceToSpawn(); got != 4 {
		t.Errorf("DistanceToSpawn() = %d, want 4", got)
	}

	m.Return()
	if !m.Returning() {
		t.Error("Return() did not mark mob returning")
	}
	m.Arrived()
	if m.Returning() {
		t.Error("Arrived() did not clear returning flag")
	}
}
