package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelOrdering(t *testing.T) {
	all := All()
	require.Len(t, all, 5)

	for i := 1; i < len(all); i++ {
		assert.Greater(t, Level(all[i]), Level(all[i-1]),
			"%s must outrank %s", all[i], all[i-1])
	}
}

func TestAtLeast(t *testing.T) {
	assert.True(t, AtLeast(Admin, TeamLeader))
	assert.True(t, AtLeast(Admin, Admin))
	assert.False(t, AtLeast(SupportWorker, TeamLeader))
	assert.True(t, AtLeast(ConsoleManager, Admin))
}

// AtLeast must be monotonic: holding a level implies holding every lower one.
func TestAtLeastLevelMonotonic(t *testing.T) {
	for _, r := range All() {
		for level := 1; level <= 5; level++ {
			if AtLeastLevel(r, level) {
				for lower := 1; lower < level; lower++ {
					assert.True(t, AtLeastLevel(r, lower),
						"%s holds level %d but not lower level %d", r, level, lower)
				}
			}
		}
	}
}

func TestParse(t *testing.T) {
	r, err := Parse("coordinator")
	require.NoError(t, err)
	assert.Equal(t, Coordinator, r)

	// Legacy spellings and casing variants must not resolve.
	for _, name := range []string{"Admin", "ADMIN", "administrator", "superadmin", ""} {
		_, err := Parse(name)
		assert.Error(t, err, "expected %q to be rejected", name)
	}
}

func TestLevelPanicsOnUnknownRole(t *testing.T) {
	assert.Panics(t, func() {
		Level(Role("intruder"))
	})
}

func TestIsGlobal(t *testing.T) {
	assert.True(t, IsGlobal(ConsoleManager))
	for _, r := range []Role{SupportWorker, TeamLeader, Coordinator, Admin} {
		assert.False(t, IsGlobal(r))
	}
}
