// Package oids maps object identifiers to readable names. Entries are read
// from the dumpasn1.cfg format: an "OID = ..." line followed by
// "Description", optional "Comment" lines and an optional bare "Warning" flag.
package oids

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"strings"
)

// Info describes a single object identifier.
type Info struct {
	OID         string
	Description string
	Comment     string
	Warning     bool // deprecated or weak algorithm
}

// Registry is a set of Info entries keyed by dotted OID.
type Registry struct {
	entries map[string]*Info
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Info)}
}

// Parse reads entries from r and adds them to the registry. Later entries for
// the same OID replace earlier ones.
func (r *Registry) Parse(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	var current *Info
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		attr, value, hasValue := strings.Cut(line, "=")
		attr = strings.TrimSpace(attr)
		value = strings.TrimSpace(value)

		if !hasValue {
			if attr != "Warning" {
				return fmt.Errorf("line %d: expected 'attribute = value' or 'Warning'", lineNum)
			}
			if current == nil {
				return fmt.Errorf("line %d: Warning without preceding OID", lineNum)
			}
			current.Warning = true
			continue
		}

		switch attr {
		case "OID":
			if current != nil {
				if err := r.add(current); err != nil {
					return fmt.Errorf("line %d: %w", lineNum, err)
				}
			}
			current = &Info{OID: Normalize(value)}
		case "Description":
			if current == nil {
				return fmt.Errorf("line %d: Description without preceding OID", lineNum)
			}
			current.Description = value
		case "Comment":
			if current == nil {
				return fmt.Errorf("line %d: Comment without preceding OID", lineNum)
			}
			current.Comment = value
		default:
			return fmt.Errorf("line %d: unknown attribute %q", lineNum, attr)
		}
	}

	if current != nil {
		if err := r.add(current); err != nil {
			return fmt.Errorf("end of input: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	return nil
}

func (r *Registry) add(info *Info) error {
	if info.OID == "" {
		return fmt.Errorf("OID cannot be empty")
	}
	if info.Description == "" {
		return fmt.Errorf("description is required for OID %s", info.OID)
	}
	r.entries[info.OID] = info
	return nil
}

// Lookup returns the entry for oid, given in dotted or space separated form.
func (r *Registry) Lookup(oid string) (*Info, bool) {
	info, ok := r.entries[Normalize(oid)]
	return info, ok
}

// Name returns the description for oid, or "" when it is unknown.
func (r *Registry) Name(oid string) string {
	if info, ok := r.Lookup(oid); ok {
		return info.Description
	}
	return ""
}

// Count returns the number of entries.
func (r *Registry) Count() int {
	return len(r.entries)
}

// All returns a copy of every entry keyed by dotted OID.
func (r *Registry) All() map[string]*Info {
	out := make(map[string]*Info, len(r.entries))
	maps.Copy(out, r.entries)
	return out
}

// ParseFile creates a registry and fills it from reader.
func ParseFile(reader io.Reader) (*Registry, error) {
	registry := NewRegistry()
	if err := registry.Parse(reader); err != nil {
		return nil, err
	}
	return registry, nil
}

// Normalize turns "1 2 840" or " 1.2.840 " into "1.2.840".
func Normalize(oid string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(oid, ".", " ")), ".")
}
