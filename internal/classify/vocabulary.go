package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the relevance data: CPV codes (8-digit, no check digit) and
// lowercase keywords.
type Vocabulary struct {
	Codes    []string `yaml:"codes"`
	Keywords []string `yaml:"keywords"`
}

var defaultCodes = []string{
	"45310000", "45311000", "45311100", "45311200", "45312000",
	"45312100", "45312200", "45312310", "45314000", "45315000",
	"45315100", "45315300", "45315600", "45315700", "45316000", "45317000",
	"45000000", "45200000", "45210000", "45220000", "45300000",
}

var defaultKeywords = []string{
	// core
	"electrical", "electric", "electrician", "wiring", "rewire", "rewiring",
	"cable", "cabling", "cables",
	// lighting
	"lighting", "light fitting", "luminaire", "lamp", "led", "emergency lighting",
	"exit sign", "lux",
	// fire & security
	"fire alarm", "fire detection", "smoke alarm", "smoke detector", "intruder alarm",
	"burglar alarm", "security alarm", "access control",
	// testing
	"eicr", "electrical inspection", "periodic inspection", "fixed wire testing",
	"portable appliance", "pat testing", "electrical testing", "test and inspect",
	// distribution
	"consumer unit", "distribution board", "switchgear", "switchboard", "main panel",
	"circuit breaker", "rcd", "rcbo", "mccb",
	// infrastructure
	"ev charging", "ev charger", "electric vehicle", "charge point", "solar pv",
	"solar panel", "photovoltaic", "renewable energy", "battery storage", "ups",
	"uninterruptible power",
	// data & low voltage
	"data cabling", "structured cabling", "cat5", "cat6", "fibre optic", "containment",
	"trunking", "conduit", "cable tray", "cctv", "door entry", "intercom",
	// building services
	"m&e", "mechanical electrical", "mep", "building services", "hvac control", "bms",
	"building management",
	// codes quoted in text
	"45310000", "45311000", "45312000", "45314000", "45315000", "45316000", "45317000",
	// maintenance
	"maintenance contract", "reactive repairs", "planned maintenance",
	"housing maintenance", "facilities management", "fm contract",
}

// DefaultVocabulary returns a fresh copy of the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Codes:    append([]string(nil), defaultCodes...),
		Keywords: append([]string(nil), defaultKeywords...),
	}
}

type vocabularyFile struct {
	Mode     string   `yaml:"mode"` // extend | replace
	Codes    []string `yaml:"codes"`
	Keywords []string `yaml:"keywords"`
}

// LoadVocabulary reads a YAML vocabulary file. With mode "extend" (the default)
// its entries are appended to the built-in vocabulary; "replace" uses the file alone.
func LoadVocabulary(path string) (Vocabulary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}
	var f vocabularyFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	var v Vocabulary
	switch strings.ToLower(strings.TrimSpace(f.Mode)) {
	case "", "extend":
		v = DefaultVocabulary()
	case "replace":
	default:
		return Vocabulary{}, fmt.Errorf("vocabulary %s: unknown mode %q", path, f.Mode)
	}
	v.Codes = append(v.Codes, f.Codes...)
	v.Keywords = append(v.Keywords, f.Keywords...)
	if len(v.Codes) == 0 && len(v.Keywords) == 0 {
		return Vocabulary{}, fmt.Errorf("vocabulary %s is empty", path)
	}
	return v, nil
}
