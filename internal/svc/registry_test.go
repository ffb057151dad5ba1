package svc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByNameCreateAndLookup(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)

	_, ok := reg.ByName("web", false)
	assert.False(t, ok)

	rec, ok := reg.ByName("web", true)
	require.True(t, ok)
	assert.Equal(t, "web", rec.Name())
	assert.Equal(t, Down, rec.State())
	assert.Equal(t, 0, rec.Pid())

	again, ok := reg.ByName("web", false)
	assert.True(t, ok)
	assert.Same(t, rec, again)
}

func TestByNameRejectsInvalidName(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	_, ok := reg.ByName("bad name!", true)
	assert.False(t, ok)
}

func TestCheckName(t *testing.T) {
	cases := map[string]bool{
		"web":          true,
		"web.1":        true,
		"web_1-a":      true,
		"":             false,
		"bad name":     false,
		"bad/name":     false,
	}
	for name, want := range cases {
		assert.Equal(t, want, CheckName(name), "name=%q", name)
	}
}

// Scenario 6 (spec.md §8 "Name iteration").
func TestIterNextOrdering(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	reg.ByName("a", true)
	reg.ByName("c", true)
	reg.ByName("e", true)

	next, ok := reg.IterNext(nil, "b")
	require.True(t, ok)
	assert.Equal(t, "c", next.Name())

	next, ok = reg.IterNext(next, "")
	require.True(t, ok)
	assert.Equal(t, "e", next.Name())

	_, ok = reg.IterNext(next, "")
	assert.False(t, ok)
}

func TestIterNextFromExactName(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	reg.ByName("a", true)
	reg.ByName("b", true)
	reg.ByName("c", true)

	next, ok := reg.IterNext(nil, "b")
	require.True(t, ok)
	assert.Equal(t, "c", next.Name())
}

func TestIterNextFromNameGreaterThanAll(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	reg.ByName("a", true)
	_, ok := reg.IterNext(nil, "z")
	assert.False(t, ok)
}

func TestByPidPopulatedOnlyWhileAlive(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)

	_, ok := reg.ByPid(1)
	assert.False(t, ok)

	reg.HandleStart(rec, 0)
	reg.Run(rec) // forks, pid=1

	found, ok := reg.ByPid(1)
	require.True(t, ok)
	assert.Same(t, rec, found)
}

func TestDeletePrunesIndicesAndLists(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	reg.HandleStart(rec, 0)
	reg.Run(rec) // Up, pid=1

	reg.Delete(rec)

	_, ok := reg.ByName("web", false)
	assert.False(t, ok)
	_, ok = reg.ByPid(1)
	assert.False(t, ok)
	assert.False(t, reg.active.isMember(rec, activeAccessor))
	assert.False(t, reg.sigwake.isMember(rec, sigwakeAccessor))
}

func TestSetActiveIdempotent(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)

	reg.setActive(rec, true)
	reg.setActive(rec, true) // no-op
	assert.True(t, reg.active.isMember(rec, activeAccessor))

	reg.setActive(rec, false)
	reg.setActive(rec, false) // no-op
	assert.False(t, reg.active.isMember(rec, activeAccessor))
}

func TestSetSigwakeIdempotent(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)

	reg.setSigwake(rec, true)
	reg.setSigwake(rec, true)
	assert.True(t, rec.Sigwake())

	reg.setSigwake(rec, false)
	reg.setSigwake(rec, false)
	assert.False(t, rec.Sigwake())
}

func TestSetFdsComputesControlFlags(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)

	require.True(t, reg.SetFds(rec, "control.socket\tnull\tnull"))
	assert.True(t, rec.UsesControlSocket())
	assert.False(t, rec.UsesControlCmd())
	assert.False(t, rec.UsesControlEvent())

	require.True(t, reg.SetFds(rec, "control.cmd\tcontrol.event\tnull"))
	assert.False(t, rec.UsesControlSocket())
	assert.True(t, rec.UsesControlCmd())
	assert.True(t, rec.UsesControlEvent())
}

// Boundary: setting fds to the canonical default clears the variable and
// zeros every uses_control_* flag.
func TestSetFdsDefaultCanonicalizesToUnset(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	require.True(t, reg.SetFds(rec, "control.socket\tnull\tnull"))
	require.True(t, rec.UsesControlSocket())

	require.True(t, reg.SetFds(rec, "null\tnull\tnull"))
	assert.False(t, rec.UsesControlSocket())
	assert.Equal(t, 0, rec.vars.Len())
	assert.Equal(t, "null\tnull\tnull", reg.GetFds(rec))
}

func TestGetSetTagsArgv(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)

	assert.Equal(t, "", reg.GetTags(rec))
	require.True(t, reg.SetTags(rec, "frontend"))
	assert.Equal(t, "frontend", reg.GetTags(rec))

	require.True(t, reg.SetArgv(rec, "/bin/httpd\t-f\tconf"))
	assert.Equal(t, "/bin/httpd\t-f\tconf", reg.GetArgv(rec))
	assert.Equal(t, "/bin/httpd\t-f\tconf", rec.Argv())
}

func TestSetRestartIntervalValidation(t *testing.T) {
	rec := newRecord("web", 0)
	assert.False(t, rec.SetRestartInterval(FixedTime(1)<<31)) // < 1 second
	assert.True(t, rec.SetRestartInterval(SecondsFixed))
	assert.Equal(t, SecondsFixed, rec.RestartInterval())
}
