package mcu

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParamKind says how one argument travels on the wire.
type ParamKind uint8

const (
	ParamInt   ParamKind = iota // %c %u %i %hu ... : one VLQ integer
	ParamBytes                  // %*s %.*s %s : VLQ length then raw bytes
)

// Param is one name=%fmt field of a command format.
type Param struct {
	Name string
	Kind ParamKind
}

// Entry is one command or response from the firmware dictionary.
type Entry struct {
	ID     uint16
	Name   string
	Format string
	Params []Param
}

// Dictionary maps command names to IDs and back.
type Dictionary struct {
	byName map[string]*Entry
	byID   map[uint16]*Entry
}

// bootstrapDictionary knows just enough to fetch the real one.
func bootstrapDictionary() *Dictionary {
	d, _ := ParseDictionary([]byte("0 identify_response offset=%u data=%*s\n1 identify offset=%u count=%c\n"))
	return d
}

// ParseDictionary parses the firmware dictionary text: one entry per line,
// "<id> <name> [<name>=<fmt> ...]".
func ParseDictionary(data []byte) (*Dictionary, error) {
	d := &Dictionary{
		byName: make(map[string]*Entry),
		byID:   make(map[uint16]*Entry),
	}

	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		e, err := parseEntry(line)
		if err != nil {
			return nil, errors.Wrapf(err, "dictionary line %d", lineNo)
		}
		d.byName[e.Name] = e
		d.byID[e.ID] = e
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read dictionary")
	}
	return d, nil
}

func parseEntry(line string) (*Entry, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, errors.Errorf("malformed entry %q", line)
	}
	id, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return nil, errors.Wrapf(err, "bad id in %q", line)
	}

	e := &Entry{
		ID:     uint16(id),
		Name:   fields[1],
		Format: strings.Join(fields[2:], " "),
	}
	for _, f := range fields[2:] {
		name, spec, ok := strings.Cut(f, "=")
		if !ok || !strings.HasPrefix(spec, "%") {
			return nil, errors.Errorf("bad parameter %q in %s", f, e.Name)
		}
		kind := ParamInt
		if strings.HasSuffix(spec, "s") {
			kind = ParamBytes
		}
		e.Params = append(e.Params, Param{Name: name, Kind: kind})
	}
	return e, nil
}

// Lookup finds an entry by name.
func (d *Dictionary) Lookup(name string) (*Entry, bool) {
	e, ok := d.byName[name]
	return e, ok
}

// ByID finds an entry by ID.
func (d *Dictionary) ByID(id uint16) (*Entry, bool) {
	e, ok := d.byID[id]
	return e, ok
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	return len(d.byID)
}

// Names returns every entry name in ID order.
func (d *Dictionary) Names() []string {
	names := make([]string, 0, len(d.byID))
	for id := 0; len(names) < len(d.byID) && id <= 0xFFFF; id++ {
		if e, ok := d.byID[uint16(id)]; ok {
			names = append(names, e.Name)
		}
	}
	return names
}
