package assembler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mipsim/mips32/cpu"
)

// .include nesting limit; a cycle of includes runs into it.
const maxIncludeDepth = 16

// AssembleFile assembles a source file, splicing .include directives
// in place first. Included paths resolve relative to the directory of
// the including file.
func (a *Assembler) AssembleFile(path string) (*cpu.Image, error) {
	src, err := expandIncludes(path, 0)
	if err != nil {
		return nil, err
	}
	return a.Assemble(src)
}

func expandIncludes(path string, depth int) (string, error) {
	if depth > maxIncludeDepth {
		return "", &Diagnostic{Kind: SyntaxError,
			Message: f(".include nesting too deep at %s", path)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	src := strings.ReplaceAll(string(data), "\r\n", "\n")

	var sb strings.Builder
	for _, line := range strings.Split(src, "\n") {
		name, ok := includeTarget(line)
		if !ok {
			sb.WriteString(line)
			sb.WriteByte('\n')
			continue
		}
		sub, err := expandIncludes(filepath.Join(filepath.Dir(path), name), depth+1)
		if err != nil {
			return "", err
		}
		sb.WriteString(sub)
	}
	return sb.String(), nil
}

// includeTarget extracts the file name from a .include line, or
// reports that the line is something else.
func includeTarget(line string) (string, bool) {
	t := strings.TrimSpace(line)
	if len(t) <= len(dirInclude) || !strings.EqualFold(t[:len(dirInclude)], dirInclude) {
		return "", false
	}
	switch t[len(dirInclude)] {
	case ' ', '\t', '"':
	default:
		return "", false
	}
	name := strings.TrimSpace(t[len(dirInclude):])
	if i := strings.IndexByte(name, commentChar); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	name = strings.Trim(name, `"`)
	if name == "" {
		return "", false
	}
	return name, true
}
