package arena

import (
	"fmt"

	"github.com/karuha/arenachain/core"
)

// Base stat tables, indexed by core.CharacterClass. Order matches the class
// constants: warrior, mage, ranger, rogue, paladin, necromancer.
var (
	baseHealth  = [core.NumClasses]uint64{100, 70, 80, 75, 110, 65}
	baseMana    = [core.NumClasses]uint64{30, 110, 50, 45, 60, 100}
	baseAttack  = [core.NumClasses]uint64{85, 90, 80, 95, 70, 100}
	baseDefense = [core.NumClasses]uint64{90, 55, 65, 50, 105, 45}
)

// Fallbacks returned by the lenient base-stat lookups for out-of-range
// classes. BaseHealth has no fallback: it is the strict accessor and errors
// instead. The asymmetry is deliberate and load-bearing for callers that use
// BaseHealth to validate a class value.
const (
	fallbackMana    = 70
	fallbackAttack  = 75
	fallbackDefense = 65
)

// BaseHealth returns the class's base health, or ErrUnknownClass for a value
// outside the six defined classes.
func BaseHealth(c core.CharacterClass) (uint64, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownClass, c)
	}
	return baseHealth[c], nil
}

// BaseMana returns the class's base mana, falling back to a default for
// unknown classes.
func BaseMana(c core.CharacterClass) uint64 {
	if !c.Valid() {
		return fallbackMana
	}
	return baseMana[c]
}

// BaseAttack returns the class's base attack, falling back to a default for
// unknown classes.
func BaseAttack(c core.CharacterClass) uint64 {
	if !c.Valid() {
		return fallbackAttack
	}
	return baseAttack[c]
}

// BaseDefense returns the class's base defense, falling back to a default for
// unknown classes.
func BaseDefense(c core.CharacterClass) uint64 {
	if !c.Valid() {
		return fallbackDefense
	}
	return baseDefense[c]
}

// RequiredExp returns the cumulative experience a character must hold to be
// at the given level: level * 100.
func RequiredExp(level uint64) uint64 {
	return level * 100
}

// ApplyLeveling advances the record's level while its experience covers the
// next threshold. Experience is fixed during the loop and thresholds strictly
// increase, so the loop terminates; levels never decrease.
func ApplyLeveling(cs *core.CharacterStats) {
	for cs.Exp >= RequiredExp(cs.Level+1) {
		cs.Level++
	}
}
