// Package manifest parses a module's version manifest: an ordered list of
// version lines and bare update references.
//
//	# 1 Initial release
//	2|0.0.2|@backfill_email Adds contact email
//	@fix_dates|@reindex
//
// A version token is a bare build number N (version 1.0.N), a three part
// version, or build|version, optionally followed by |@ref parts.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/shepherrrd/schemasync/internal/errors"
)

// Entry is a VersionUpdate or an UpdateReference.
type Entry interface {
	entry()
}

// VersionUpdate declares a module version and the update identified by it.
type VersionUpdate struct {
	Version     string
	Build       string
	Description string
	References  []string
	Line        int
}

// UpdateReference names an update applied independently of any version.
type UpdateReference struct {
	Reference string
	Line      int
}

func (VersionUpdate) entry()   {}
func (UpdateReference) entry() {}

// Identifier is the update applied for v: its build number if it has one,
// otherwise its version.
func (v VersionUpdate) Identifier() string {
	if v.Build != "" {
		return v.Build
	}
	return v.Version
}

// ParseString parses a manifest held in memory.
func ParseString(s string) ([]Entry, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads a manifest. A malformed line is a ManifestParse error naming
// its line number.
func Parse(r io.Reader) ([]Entry, error) {
	const op = "manifest.Parse"
	var (
		entries []Entry
		lineNo  int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "@") {
			refs, err := parseRefs(line)
			if err != nil {
				return nil, errors.Newf(errors.ManifestParse, op, "line %d: %s", lineNo, err)
			}
			for _, ref := range refs {
				entries = append(entries, UpdateReference{Reference: ref, Line: lineNo})
			}
			continue
		}
		v, err := parseVersionLine(strings.TrimSpace(strings.TrimPrefix(line, "#")))
		if err != nil {
			return nil, errors.Newf(errors.ManifestParse, op, "line %d: %s", lineNo, err)
		}
		v.Line = lineNo
		entries = append(entries, v)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ManifestParse, op, "read manifest")
	}
	return entries, nil
}

func parseRefs(line string) ([]string, error) {
	var refs []string
	for _, part := range strings.Split(line, "|") {
		ref := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "@"))
		if ref == "" {
			return nil, fmt.Errorf("empty update reference in %q", line)
		}
		if strings.ContainsAny(ref, " \t") {
			return nil, fmt.Errorf("update reference %q contains whitespace", ref)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseVersionLine(line string) (VersionUpdate, error) {
	var v VersionUpdate
	token, desc := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		token, desc = line[:i], line[i+1:]
	}
	if token == "" {
		return v, fmt.Errorf("missing version token")
	}
	v.Description = strings.TrimSpace(desc)

	parts := strings.Split(token, "|")
	head := parts[0]
	rest := parts[1:]
	switch {
	case isBuild(head):
		v.Build = head
		if len(rest) > 0 && !strings.HasPrefix(rest[0], "@") {
			v.Version = rest[0]
			rest = rest[1:]
		} else {
			v.Version = "1.0." + head
		}
	default:
		v.Version = head
	}
	if err := checkVersion(v.Version); err != nil {
		return v, err
	}
	for _, part := range rest {
		if !strings.HasPrefix(part, "@") || len(part) == 1 {
			return v, fmt.Errorf("unexpected %q in version token %q", part, token)
		}
		v.References = append(v.References, part[1:])
	}
	return v, nil
}

func isBuild(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func checkVersion(s string) error {
	if strings.Count(s, ".") != 2 {
		return fmt.Errorf("version %q must have three parts", s)
	}
	if _, err := version.NewSemver(s); err != nil {
		return fmt.Errorf("invalid version %q: %w", s, err)
	}
	return nil
}

// Versions returns the VersionUpdate entries in order.
func Versions(entries []Entry) []VersionUpdate {
	var out []VersionUpdate
	for _, e := range entries {
		if v, ok := e.(VersionUpdate); ok {
			out = append(out, v)
		}
	}
	return out
}

// Final returns the last VersionUpdate, if any.
func Final(entries []Entry) (VersionUpdate, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if v, ok := entries[i].(VersionUpdate); ok {
			return v, true
		}
	}
	return VersionUpdate{}, false
}

// IndexOf returns the position in entries of the VersionUpdate whose
// version is exactly ver, or -1.
func IndexOf(entries []Entry, ver string) int {
	for i, e := range entries {
		if v, ok := e.(VersionUpdate); ok && v.Version == ver {
			return i
		}
	}
	return -1
}
