package ftp

import (
	"fmt"
	"strconv"
	"strings"
)

// EntryKind classifies a directory entry.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
	// KindSkip marks entries the remote reports but wants hidden
	// ("." and ".." on most implementations). They still count toward
	// the listing offset but are excluded from results.
	KindSkip
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSkip:
		return "skip"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Entry is one directory listing entry.
type Entry struct {
	Name string
	Kind EntryKind
	Size uint32
}

// parseEntry parses one listing fragment. Entries are encoded as a kind
// marker followed by the name, with an optional tab-separated size:
//
//	"Fdata.bin\t1024"  file, 1024 bytes
//	"Dlogs"            directory
//	"S"                skipped entry
func parseEntry(s string) (Entry, error) {
	if s == "" {
		return Entry{}, fmt.Errorf("empty entry")
	}

	name, sizeStr, _ := strings.Cut(s[1:], "\t")

	var kind EntryKind
	switch s[0] {
	case 'F':
		kind = KindFile
	case 'D':
		kind = KindDirectory
	case 'S':
		kind = KindSkip
	default:
		return Entry{}, fmt.Errorf("invalid entry kind %q", s[0])
	}

	var size uint32
	if sizeStr != "" {
		n, err := strconv.ParseUint(sizeStr, 10, 32)
		if err != nil {
			return Entry{}, fmt.Errorf("invalid entry size %q: %w", sizeStr, err)
		}
		size = uint32(n)
	}

	return Entry{Name: name, Kind: kind, Size: size}, nil
}

// parseEntries splits one listing response payload into entries. Fragments
// are NUL-delimited. The returned count includes skipped and malformed
// fragments, since the remote advances its listing offset by every entry it
// sent; malformed trailing fragments are dropped rather than failing the
// whole listing.
func parseEntries(data []byte) (entries []Entry, count int) {
	for _, fragment := range strings.Split(string(data), "\x00") {
		if fragment == "" {
			continue
		}
		count++

		entry, err := parseEntry(fragment)
		if err != nil || entry.Kind == KindSkip {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, count
}
