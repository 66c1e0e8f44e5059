// Package verify decides job success by inspecting the filesystem. The
// external tool's exit code is deliberately not trusted: xstar can exit
// zero without writing its spectrum.
package verify

import (
	"os"
	"path/filepath"
)

// SpectrumFile is the artifact every successful job leaves in its
// directory.
const SpectrumFile = "xout_spect1.fits"

// Check returns the subset of keys whose job directory lacks the spectrum
// artifact, in the same ascending order keys were given. Pure inspection,
// no process execution, safe to repeat.
func Check(modelDir string, keys []string) []string {
	var failed []string
	for _, key := range keys {
		if _, err := os.Stat(filepath.Join(modelDir, key, SpectrumFile)); err != nil {
			failed = append(failed, key)
		}
	}
	return failed
}
