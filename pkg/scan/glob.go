// Guava checks keys against glob patterns while streaming ordered scans; the
// following module implements the glob filtering.

package scan

import (
	"iter"

	"v.io/v23/glob"

	"github.com/guavadb/guava/pkg/utils"
)

// MatchGlob filters the `pairs` stream down to keys matching the given glob
// pattern. An invalid pattern yields an empty sequence.
func MatchGlob(pattern []byte, pairs iter.Seq[utils.BytePair]) iter.Seq[utils.BytePair] {
	parsedPattern, err := glob.Parse(string(pattern))
	if err != nil {
		return func(yield func(utils.BytePair) bool) {}
	}
	return func(yield func(utils.BytePair) bool) {
		for pair := range pairs {
			if parsedPattern.Head().Match(string(pair.Key)) {
				if !yield(pair) {
					return
				}
			}
		}
	}
}
