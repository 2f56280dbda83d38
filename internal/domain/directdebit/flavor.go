package directdebit

import "strings"

// Flavor is a pain.008 schema version
type Flavor string

const (
	FlavorPain00800102 Flavor = "pain.008.001.02"
	FlavorPain00800103 Flavor = "pain.008.001.03"
	FlavorPain00800104 Flavor = "pain.008.001.04"
)

// flavorProfile holds the per-version differences of the document
type flavorProfile struct {
	bicTag      string
	nameMaxSize int
}

var flavorProfiles = map[Flavor]flavorProfile{
	FlavorPain00800102: {bicTag: "BIC", nameMaxSize: 70},
	FlavorPain00800103: {bicTag: "BICFI", nameMaxSize: 140},
	FlavorPain00800104: {bicTag: "BICFI", nameMaxSize: 140},
}

// SupportedFlavors lists the flavors the builder can render, oldest first
func SupportedFlavors() []Flavor {
	return []Flavor{FlavorPain00800102, FlavorPain00800103, FlavorPain00800104}
}

// ParseFlavor validates a flavor code
func ParseFlavor(code string) (Flavor, error) {
	f := Flavor(strings.TrimSpace(code))
	if _, ok := flavorProfiles[f]; !ok {
		return "", UnsupportedFlavorError(code)
	}
	return f, nil
}

// Namespace returns the XML namespace of the flavor
func (f Flavor) Namespace() string {
	return "urn:iso:std:iso:20022:tech:xsd:" + string(f)
}

// BICTag returns the element name that carries a BIC in this flavor
func (f Flavor) BICTag() string {
	return flavorProfiles[f].bicTag
}

// NameMaxSize returns the maximum length of party names in this flavor
func (f Flavor) NameMaxSize() int {
	return flavorProfiles[f].nameMaxSize
}

func supportedFlavorList() string {
	quoted := make([]string, 0, len(flavorProfiles))
	for _, f := range SupportedFlavors() {
		quoted = append(quoted, "'"+string(f)+"'")
	}
	return strings.Join(quoted, ", ")
}
