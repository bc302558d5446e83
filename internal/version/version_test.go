package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, v, c, d string) {
	t.Helper()
	oldV, oldC, oldD := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = oldV, oldC, oldD })
}

func TestDefaults(t *testing.T) {
	v, c, d := Info()
	assert.Equal(t, "dev", v)
	assert.Equal(t, "unknown", c)
	assert.Equal(t, "unknown", d)
}

func TestLdflagsValues(t *testing.T) {
	withBuildInfo(t, "v1.4.0", "3f2a9c1", "2026-10-01T12:00:00Z")

	assert.Equal(t, "v1.4.0", GetVersion())
	assert.Equal(t, "3f2a9c1", GetCommit())
	assert.Equal(t, "2026-10-01T12:00:00Z", GetDate())
	assert.Equal(t, "version=v1.4.0 commit=3f2a9c1 date=2026-10-01T12:00:00Z", String())

	v, c, d := Info()
	assert.Equal(t, [3]string{GetVersion(), GetCommit(), GetDate()}, [3]string{v, c, d})
}
