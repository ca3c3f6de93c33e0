// ABOUTME: Tests for version constants
// ABOUTME: Ensures build identity strings are defined and sane
package version

import (
	"strings"
	"testing"
)

func TestIdentityDefined(t *testing.T) {
	for name, value := range map[string]string{
		"Version":      Version,
		"Product":      Product,
		"Manufacturer": Manufacturer,
	} {
		if value == "" {
			t.Errorf("%s should not be empty", name)
		}
		if len(value) > 100 {
			t.Errorf("%s is unreasonably long", name)
		}
	}
}

func TestVersionFormat(t *testing.T) {
	if Version != "dev" && !strings.Contains(Version, ".") {
		t.Errorf("Version %q is neither dev nor dotted", Version)
	}
}
