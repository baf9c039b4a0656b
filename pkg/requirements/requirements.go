// Package requirements builds a read-only exact-version index from an
// exported requirements listing (one "name==version" pair per line).
//
// The listing is the snapshot of a prior resolution; it is only ever used
// as a lookup table, never re-resolved.
package requirements

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/uvlift/uvlift/pkg/errors"
	"github.com/uvlift/uvlift/pkg/manifest"
)

// pinRE matches "name[extras]==version" at the start of a requirement line.
var pinRE = regexp.MustCompile(`^([a-zA-Z0-9][-a-zA-Z0-9._]*)(?:\[[^\]]*\])?==([^\s;]+)`)

// Index maps normalized dependency names to exact version strings. It is
// built once per run and read-only thereafter.
type Index map[string]string

// Version returns the exact version resolved for name, if any.
func (i Index) Version(name string) (string, bool) {
	v, ok := i[manifest.NormalizeName(name)]
	return v, ok
}

// Len returns the number of indexed entries.
func (i Index) Len() int { return len(i) }

// Load reads a requirements listing from path and builds the index.
func Load(path string) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "requirements file %s", path)
		}
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse builds the index from a requirements listing. Comment lines, pip
// flags, bare URLs and "file:" local-path markers are skipped; a duplicate
// pin keeps the first version seen.
func Parse(r io.Reader) (Index, error) {
	idx := make(Index)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '-' {
			continue
		}
		if strings.Contains(line, "://") || strings.HasPrefix(line, "git+") || strings.Contains(line, "file:") {
			continue
		}
		m := pinRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := manifest.NormalizeName(m[1])
		if _, ok := idx[name]; !ok {
			idx[name] = m[2]
		}
	}

	return idx, scanner.Err()
}
