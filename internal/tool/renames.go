package tool

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/let-me-illustrate/lmi-sub002/core/ratetable"
)

// renameFile is a parsed --rename file: one "number name" entry per line.
type renameFile struct {
	Entries []string `parser:"@Entry*"`
}

var renameLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\r\n]*`},
	// The name is the rest of the line and may itself contain digits.
	{Name: "Entry", Pattern: `[0-9]+[ \t]+[^\r\n]*[^ \t\r\n]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Newline", Pattern: `[\r\n]+`},
})

var renameParser = participle.MustBuild[renameFile](
	participle.Lexer(renameLexer),
	participle.Elide("Comment", "Whitespace", "Newline"),
)

// Rename is one entry of a rename file.
type Rename struct {
	Number ratetable.Number
	Name   string
}

// ParseRenames parses the contents of a rename file. Blank lines and lines
// starting with # are ignored; a table may only be renamed once.
func ParseRenames(filename, input string) ([]Rename, error) {
	parsed, err := renameParser.ParseString(filename, input)
	if err != nil {
		return nil, fmt.Errorf("invalid rename file: %w", err)
	}

	seen := make(map[ratetable.Number]bool)
	renames := make([]Rename, 0, len(parsed.Entries))
	for _, entry := range parsed.Entries {
		i := strings.IndexAny(entry, " \t")
		n, err := strconv.ParseUint(entry[:i], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid table number in rename file %s: %s", filename, entry[:i])
		}
		number := ratetable.Number(n)
		if seen[number] {
			return nil, fmt.Errorf("table %d renamed more than once in %s", number, filename)
		}
		seen[number] = true
		renames = append(renames, Rename{Number: number, Name: strings.TrimLeft(entry[i:], " \t")})
	}
	return renames, nil
}

// RenameTables renames the tables listed in the rename file at path. Every
// listed table must exist.
func RenameTables(db *ratetable.Database, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rename file: %w", err)
	}
	renames, err := ParseRenames(path, string(data))
	if err != nil {
		return err
	}

	for _, r := range renames {
		t, err := db.FindTable(r.Number)
		if err != nil {
			return fmt.Errorf("failed to rename table %d: %w", r.Number, err)
		}
		t.SetName(r.Name)
	}
	return nil
}
