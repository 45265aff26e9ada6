package utils

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetTestFlag overrides a registered flag for the duration of one test and
// restores the previous value on cleanup. Guava components read their
// capacity and tuning knobs from flags, so tests pin them through this
// helper instead of mutating the flag globals directly.
func SetTestFlag(t *testing.T, name, value string) {
	t.Helper()
	flagHolder := flag.Lookup(name)
	require.NotNilf(t, flagHolder, "No flag named %q is registered.", name)
	prevValue := flagHolder.Value.String()
	t.Cleanup(func() { require.NoError(t, flag.Set(name, prevValue)) })
	require.NoError(t, flag.Set(name, value))
}
