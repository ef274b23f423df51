package arena_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/vm/modules/arena"
)

func TestRequiredExp(t *testing.T) {
	assert.Equal(t, uint64(0), arena.RequiredExp(0))
	assert.Equal(t, uint64(100), arena.RequiredExp(1))
	assert.Equal(t, uint64(200), arena.RequiredExp(2))
	assert.Equal(t, uint64(1000), arena.RequiredExp(10))
}

func TestApplyLeveling(t *testing.T) {
	cases := []struct {
		exp       uint64
		wantLevel uint64
	}{
		{0, 0},
		{50, 0},
		{99, 0},
		{100, 1},
		{150, 1},
		{199, 1},
		{200, 2},
		{250, 2},
		{1000, 10},
	}
	for _, tc := range cases {
		cs := &core.CharacterStats{Exp: tc.exp}
		arena.ApplyLeveling(cs)
		assert.Equal(t, tc.wantLevel, cs.Level, "exp %d", tc.exp)
	}
}

// Levels accumulate across multiple credits and never regress.
func TestApplyLevelingMonotonic(t *testing.T) {
	cs := &core.CharacterStats{}
	for _, credit := range []uint64{60, 60, 60, 60} {
		prev := cs.Level
		cs.Exp += credit
		arena.ApplyLeveling(cs)
		assert.GreaterOrEqual(t, cs.Level, prev)
	}
	assert.Equal(t, uint64(240), cs.Exp)
	assert.Equal(t, uint64(2), cs.Level)
}

func TestBaseStatTables(t *testing.T) {
	type row struct {
		class                          core.CharacterClass
		health, mana, attack, defense uint64
	}
	rows := []row{
		{core.ClassWarrior, 100, 30, 85, 90},
		{core.ClassMage, 70, 110, 90, 55},
		{core.ClassRanger, 80, 50, 80, 65},
		{core.ClassRogue, 75, 45, 95, 50},
		{core.ClassPaladin, 110, 60, 70, 105},
		{core.ClassNecromancer, 65, 100, 100, 45},
	}
	for _, r := range rows {
		h, err := arena.BaseHealth(r.class)
		require.NoError(t, err, r.class.String())
		assert.Equal(t, r.health, h, "%s health", r.class)
		assert.Equal(t, r.mana, arena.BaseMana(r.class), "%s mana", r.class)
		assert.Equal(t, r.attack, arena.BaseAttack(r.class), "%s attack", r.class)
		assert.Equal(t, r.defense, arena.BaseDefense(r.class), "%s defense", r.class)
	}
}

// BaseHealth is strict on unknown classes; the other three lookups fall back
// to defaults instead.
func TestBaseStatsUnknownClass(t *testing.T) {
	unknown := core.CharacterClass(core.NumClasses)

	_, err := arena.BaseHealth(unknown)
	assert.ErrorIs(t, err, arena.ErrUnknownClass)

	assert.Equal(t, uint64(70), arena.BaseMana(unknown))
	assert.Equal(t, uint64(75), arena.BaseAttack(unknown))
	assert.Equal(t, uint64(65), arena.BaseDefense(unknown))
}
