package oids

import (
	_ "embed"
	"strings"
)

//go:embed registry.cfg
var defaultConfig string

// Default holds the identifiers found in passport certificates and security
// objects: CMS content types and attributes, ICAO LDS types, signature and
// digest algorithms, and X.520 name attributes.
var Default = mustParse(defaultConfig)

func mustParse(cfg string) *Registry {
	r, err := ParseFile(strings.NewReader(cfg))
	if err != nil {
		panic("oids: embedded registry: " + err.Error())
	}
	return r
}
