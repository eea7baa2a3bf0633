package catalog

import (
	"regexp"
	"strings"
)

const (
	MinPartPrice = 1.0
	MaxPartPrice = 2000.0
)

// fabricatedMarkers are substrings that never occur in real part numbers.
var fabricatedMarkers = []string{
	"MAGIC", "UNICORN", "FAKE", "TEST", "QUANTUM", "SPACE", "ALIEN",
	"DRAGON", "WIZARD", "ROBOT", "CYBER", "MATRIX", "INFINITY",
}

var (
	modelFormat    = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{3,19}$`)
	strictModelFmt = regexp.MustCompile(`^[A-Z0-9]{6,15}$`)
)

var dangerousPhrases = []string{
	"while running", "with power on", "live wire", "bare hands",
	"metal fork", "without unplugging", "skip safety",
}

// SafetyWarning is attached to every installation guide.
const SafetyWarning = "Always unplug the appliance and turn off power at the circuit breaker before beginning any repair."

// NormalizeNumber upper-cases and trims a part or model number.
func NormalizeNumber(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// ValidPartNumber rejects malformed or obviously fabricated part numbers.
func ValidPartNumber(v string) bool {
	n := NormalizeNumber(v)
	if len(n) < 4 || len(n) > 15 {
		return false
	}
	for _, marker := range fabricatedMarkers {
		if strings.Contains(n, marker) {
			return false
		}
	}
	for _, r := range n {
		if r == '-' {
			continue
		}
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return strings.Trim(n, "-") != ""
}

// ValidPrice reports whether a price falls in the plausible range for appliance parts.
func ValidPrice(p float64) bool {
	return p >= MinPartPrice && p <= MaxPartPrice
}

// ValidModelFormat is the loose shape check used for compatibility lookups.
func ValidModelFormat(v string) bool {
	return modelFormat.MatchString(NormalizeNumber(v))
}

func isDangerousStep(step string) bool {
	lower := strings.ToLower(step)
	for _, phrase := range dangerousPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func modelKey(v string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(NormalizeNumber(v))
}
