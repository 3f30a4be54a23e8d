package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// assertGoldenBytes compares data against testdata/golden/<name>.golden
// using goldie, pinning the wire codec's exact output bytes. Run with
// `-update` to (re)write fixtures after an intentional wire-format
// change.
func assertGoldenBytes(t *testing.T, name string, data []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
