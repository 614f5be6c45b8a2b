// Package parser extracts model, field, and method declarations from Odoo
// addon Python source.
//
// This is deliberately not a Python parser. It is a line/indentation scanner
// with targeted patterns per construct (class header, field assignment, def,
// decorator), matching the tolerant extraction the tooling it serves was
// built around. Known limits: field declarations spanning multiple lines are
// truncated at the first line, escaped quotes inside field arguments are not
// handled, and only single-line docstrings are picked up.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/addonlens/addonlens/pkg/manifest"
	"github.com/addonlens/addonlens/pkg/util"
)

var (
	reModelHeader     = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*\([^)]*\bmodels\.Model\b[^)]*\)\s*:`)
	reAbstractHeader  = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*\([^)]*\bmodels\.AbstractModel\b[^)]*\)\s*:`)
	reComponentHeader = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*\([^)]*\bComponent\b[^)]*\)\s*:`)

	reName       = regexp.MustCompile(`^\s*_name\s*=\s*['"]([\w.]+)['"]`)
	reInherit    = regexp.MustCompile(`^\s*_inherit\s*=\s*(?:['"]([\w.]+)['"]|\[\s*['"]([\w.]+)['"])`)
	reApplyOn    = regexp.MustCompile(`^\s*_apply_on\s*=\s*(?:['"]([\w.]+)['"]|\[\s*['"]([\w.]+)['"])`)
	reCollection = regexp.MustCompile(`^\s*_collection\s*=\s*['"]([\w.]+)['"]`)

	reField     = regexp.MustCompile(`^\s*(\w+)\s*=\s*fields\.(\w+)\((.*)$`)
	reDef       = regexp.MustCompile(`^\s*def\s+(\w+)\s*\(([^)]*)\)?`)
	reDecorator = regexp.MustCompile(`^\s*@`)
	reComment   = regexp.MustCompile(`^\s*#\s?(.*)$`)
)

// Parser turns addon source files into model descriptors.
type Parser struct {
	files  *util.FileCache // optional; falls back to os.ReadFile when nil
	logger *slog.Logger
}

// New creates a parser. files may be nil.
func New(files *util.FileCache, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{files: files, logger: logger}
}

// ParseFile reads and parses one source file. moduleName is the owning addon
// module; man supplies the dependency list copied onto each descriptor and
// may be nil.
//
// Failures are isolated to the file: read errors and parser panics yield an
// empty descriptor list and a log entry, never an error that would abort a
// batch.
func (p *Parser) ParseFile(path, moduleName string, man *manifest.Manifest) []*ModelDescriptor {
	var content []byte
	var err error
	if p.files != nil {
		content, err = p.files.ReadFile(path)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		p.logger.Warn("cannot read source file", "file", path, "error", err)
		return nil
	}
	return p.Parse(string(content), path, moduleName, man)
}

// Parse parses source text directly. See ParseFile.
func (p *Parser) Parse(content, path, moduleName string, man *manifest.Manifest) (descriptors []*ModelDescriptor) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("parser panic, skipping file", "file", path, "panic", fmt.Sprint(r))
			descriptors = nil
		}
	}()

	lines := strings.Split(content, "\n")

	// Each class flavor is matched in its own pass, so one file can mix
	// ordinary models, abstract models, and components.
	for _, pass := range []struct {
		header *regexp.Regexp
		kind   ModelKind
	}{
		{reModelHeader, KindModel},
		{reAbstractHeader, KindAbstractModel},
		{reComponentHeader, KindComponent},
	} {
		for i, line := range lines {
			match := pass.header.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			desc := p.parseClass(lines, i, len(match[1]), match[2], pass.kind, path, moduleName, man)
			if desc != nil {
				descriptors = append(descriptors, desc)
			}
		}
	}

	return descriptors
}

// parseClass extracts one descriptor from the class whose header is at
// headerIdx. Returns nil when the class declares neither an identity nor an
// extension target.
func (p *Parser) parseClass(lines []string, headerIdx, headerIndent int, className string, kind ModelKind, path, moduleName string, man *manifest.Manifest) *ModelDescriptor {
	bodyEnd := classBodyEnd(lines, headerIdx, headerIndent)

	desc := &ModelDescriptor{
		ClassName:  className,
		FilePath:   path,
		ModuleName: moduleName,
		Line:       headerIdx + 1,
		Kind:       kind,
	}
	if man != nil {
		desc.Depends = append([]string(nil), man.Depends...)
	}

	for i := headerIdx + 1; i < bodyEnd; i++ {
		line := lines[i]

		if m := reName.FindStringSubmatch(line); m != nil && desc.Name == "" {
			desc.Name = m[1]
			continue
		}
		if m := reInherit.FindStringSubmatch(line); m != nil && desc.Inherit == "" {
			desc.Inherit = firstGroup(m)
			continue
		}
		if kind == KindComponent {
			if m := reApplyOn.FindStringSubmatch(line); m != nil && desc.ApplyOn == "" {
				desc.ApplyOn = firstGroup(m)
				continue
			}
			if m := reCollection.FindStringSubmatch(line); m != nil && desc.Collection == "" {
				desc.Collection = m[1]
				continue
			}
		}

		// Components carry methods but never fields.
		if kind != KindComponent {
			if m := reField.FindStringSubmatch(line); m != nil {
				field := &FieldDescriptor{
					Name:       m[1],
					Kind:       m[2],
					Properties: ParseProperties(trimFieldArgs(m[3])),
					Line:       i + 1,
					Doc:        precedingComment(lines, i),
				}
				desc.Fields = append(desc.Fields, field)
				continue
			}
		}

		if m := reDef.FindStringSubmatch(line); m != nil {
			method := &MethodDescriptor{
				Name:       m[1],
				Params:     parseParams(m[2]),
				Decorators: precedingDecorators(lines, i, headerIdx),
				Line:       i + 1,
				Doc:        trailingDocstring(lines, i, bodyEnd),
			}
			desc.Methods = append(desc.Methods, method)
		}
	}

	// A class with neither identity nor extension target is unidentifiable
	// and never enters the registry.
	if desc.Name == "" && desc.Inherit == "" {
		return nil
	}

	desc.IsExtension = desc.Name == "" && desc.Inherit != ""
	return desc
}

// classBodyEnd returns the exclusive end index of the class body that starts
// after headerIdx: the first non-blank line indented at or below the header.
func classBodyEnd(lines []string, headerIdx, headerIndent int) int {
	for i := headerIdx + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if indentOf(line) <= headerIndent {
			return i
		}
	}
	return len(lines)
}

func indentOf(line string) int {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return i
		}
	}
	return len(line)
}

// firstGroup returns the first non-empty capture group of a submatch.
func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// trimFieldArgs cuts the captured argument text at the field constructor's
// closing parenthesis, tracking nesting. Declarations that continue onto the
// next line are truncated here; that is the documented single-line tolerance.
func trimFieldArgs(rest string) string {
	depth := 0
	var quote byte
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 && c == ')' {
				return rest[:i]
			}
			depth--
		}
	}
	return rest
}

// parseParams splits a def parameter list into bare names, dropping
// annotations and default values.
func parseParams(raw string) []string {
	var params []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if idx := strings.IndexAny(name, ":="); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
		name = strings.TrimLeft(name, "*")
		if name != "" {
			params = append(params, name)
		}
	}
	return params
}

// precedingDecorators collects @-lines directly above defIdx, skipping
// blanks, stopping at the first other line or the class header.
func precedingDecorators(lines []string, defIdx, headerIdx int) []string {
	var decorators []string
	for i := defIdx - 1; i > headerIdx; i-- {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !reDecorator.MatchString(line) {
			break
		}
		decorators = append([]string{strings.TrimSpace(line)}, decorators...)
	}
	return decorators
}

// precedingComment returns the text of a #-comment on the line directly
// above lineIdx, or "".
func precedingComment(lines []string, lineIdx int) string {
	if lineIdx == 0 {
		return ""
	}
	if m := reComment.FindStringSubmatch(lines[lineIdx-1]); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// trailingDocstring looks at up to 4 lines after the def line for a
// triple-quoted opening and returns the text up to the closing marker.
// Single-line docstrings only; an unterminated opener yields the rest of
// its line.
func trailingDocstring(lines []string, defIdx, bodyEnd int) string {
	limit := defIdx + 5
	if limit > bodyEnd {
		limit = bodyEnd
	}
	for i := defIdx + 1; i < limit && i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		for _, marker := range []string{`"""`, "'''"} {
			if !strings.HasPrefix(line, marker) {
				continue
			}
			text := line[len(marker):]
			if end := strings.Index(text, marker); end >= 0 {
				text = text[:end]
			}
			return strings.TrimSpace(text)
		}
		if line != "" {
			return ""
		}
	}
	return ""
}
