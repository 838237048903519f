package policy

import (
	"strings"
)

// aliasDecl is one "Foo_Alias NAME1 = item, item : NAME2 = item" line.
type aliasDecl struct {
	category string // "User_Alias", "Host_Alias", "Runas_Alias", "Cmnd_Alias"
	entries  []aliasEntry
	line     int
}

type aliasEntry struct {
	name    string
	members []string
}

// defaultsDecl is one "Defaults ..." line.
type defaultsDecl struct {
	scope      string // "" (global), "user:NAME", "host:NAME", "runas:NAME"
	settings   []defaultsSetting
	line       int
}

type defaultsSetting struct {
	negated bool   // "!name"; "!!name" leaves it false (double negation re-affirms default-on flags)
	name    string
	op      string // "", "=", "+=", "-="
	value   string
}

// userSpecDecl is one "Who Host = (Runas) Tag... Cmnd, ..." line.
type userSpecDecl struct {
	who   []string
	hosts []string
	specs []cmndSpecDecl
	line  int
}

type cmndSpecDecl struct {
	runasUsers  []string // nil = "not specified" (sticky from a previous entry, or none at all)
	runasUsersSet bool
	runasGroups []string
	runasGroupsSet bool
	tags        map[string]bool
	chdir       *DirChange
	command     string
	args        []string
	argsAny     bool // no explicit argument list: matches any arguments
}

// parseStatement classifies and parses one logical line.
func parseStatement(ll logicalLine) (interface{}, error) {
	fields := splitTopLevel(ll.text, ' ')
	if len(fields) == 0 {
		return nil, nil
	}

	switch fields[0] {
	case "User_Alias", "Host_Alias", "Runas_Alias", "Cmnd_Alias":
		return parseAliasDecl(ll)
	case "Defaults":
		return parseDefaultsDecl(ll)
	default:
		// Scoped forms ("Defaults:user", "Defaults@host", "Defaults>runas")
		// carry the scope in the same field as the keyword.
		if len(fields[0]) > len("Defaults") && strings.HasPrefix(fields[0], "Defaults") &&
			strings.ContainsRune(":@>", rune(fields[0][len("Defaults")])) {
			return parseDefaultsDecl(ll)
		}
		return parseUserSpecDecl(ll)
	}
}

func parseAliasDecl(ll logicalLine) (*aliasDecl, error) {
	fields := strings.SplitN(ll.text, " ", 2)
	if len(fields) != 2 {
		return nil, &ParseError{File: ll.file, Line: ll.line, Col: 1, Message: "malformed alias declaration"}
	}
	category := fields[0]

	decl := &aliasDecl{category: category, line: ll.line}
	for _, group := range splitTopLevel(fields[1], ':') {
		eq := strings.SplitN(group, "=", 2)
		if len(eq) != 2 {
			return nil, &ParseError{File: ll.file, Line: ll.line, Col: 1, Message: "expected '=' in alias declaration"}
		}
		name := strings.TrimSpace(eq[0])
		if name == "" {
			return nil, &ParseError{File: ll.file, Line: ll.line, Col: 1, Message: "missing alias name"}
		}
		if isKeyword(name) {
			return nil, &ParseError{File: ll.file, Line: ll.line, Col: 1, Message: "alias name collides with reserved keyword: " + name}
		}

		members := splitCommaList(eq[1])
		decl.entries = append(decl.entries, aliasEntry{name: name, members: members})
	}

	return decl, nil
}

func parseDefaultsDecl(ll logicalLine) (*defaultsDecl, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(ll.text, "Defaults"))
	decl := &defaultsDecl{line: ll.line}

	if len(rest) > 0 {
		switch rest[0] {
		case ':':
			end := strings.IndexByte(rest, ' ')
			if end < 0 {
				end = len(rest)
			}
			decl.scope = "user:" + rest[1:end]
			rest = strings.TrimSpace(rest[end:])
		case '@':
			end := strings.IndexByte(rest, ' ')
			if end < 0 {
				end = len(rest)
			}
			decl.scope = "host:" + rest[1:end]
			rest = strings.TrimSpace(rest[end:])
		case '>':
			end := strings.IndexByte(rest, ' ')
			if end < 0 {
				end = len(rest)
			}
			decl.scope = "runas:" + rest[1:end]
			rest = strings.TrimSpace(rest[end:])
		}
	}

	for _, item := range splitCommaList(rest) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		setting := defaultsSetting{}
		switch {
		case strings.HasPrefix(item, "!!"):
			setting.name = strings.TrimPrefix(item, "!!")
		case strings.HasPrefix(item, "!"):
			setting.negated = true
			setting.name = strings.TrimPrefix(item, "!")
		case strings.Contains(item, "+="):
			parts := strings.SplitN(item, "+=", 2)
			setting.name, setting.op, setting.value = strings.TrimSpace(parts[0]), "+=", unquote(parts[1])
		case strings.Contains(item, "-="):
			parts := strings.SplitN(item, "-=", 2)
			setting.name, setting.op, setting.value = strings.TrimSpace(parts[0]), "-=", unquote(parts[1])
		case strings.Contains(item, "="):
			parts := strings.SplitN(item, "=", 2)
			setting.name, setting.op, setting.value = strings.TrimSpace(parts[0]), "=", unquote(parts[1])
		default:
			setting.name = item
		}

		decl.settings = append(decl.settings, setting)
	}

	return decl, nil
}

func parseUserSpecDecl(ll logicalLine) (*userSpecDecl, error) {
	eqIdx := topLevelIndex(ll.text, '=')
	if eqIdx < 0 {
		return nil, &ParseError{File: ll.file, Line: ll.line, Col: 1, Message: "expected '=' in user specification"}
	}

	left := strings.TrimSpace(ll.text[:eqIdx])
	right := strings.TrimSpace(ll.text[eqIdx+1:])

	leftFields := splitTopLevel(left, ' ')
	if len(leftFields) < 2 {
		return nil, &ParseError{File: ll.file, Line: ll.line, Col: 1, Message: "expected Who_List Host_List before '='"}
	}
	// The host list is the last field; everything before it is the who
	// list (both are comma-separated, so this only works because sudoers
	// requires at least one space-separated split between them — matching
	// the teacher's field-oriented parsing idiom rather than a full
	// grammar).
	hostField := leftFields[len(leftFields)-1]
	whoField := strings.Join(leftFields[:len(leftFields)-1], " ")

	decl := &userSpecDecl{
		who:   splitCommaList(whoField),
		hosts: splitCommaList(hostField),
		line:  ll.line,
	}

	for _, group := range splitTopLevelParenAware(right, ',') {
		spec, err := parseCmndSpec(strings.TrimSpace(group), ll)
		if err != nil {
			return nil, err
		}
		decl.specs = append(decl.specs, spec)
	}

	return decl, nil
}

func parseCmndSpec(s string, ll logicalLine) (cmndSpecDecl, error) {
	spec := cmndSpecDecl{}

	if strings.HasPrefix(s, "(") {
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return spec, &ParseError{File: ll.file, Line: ll.line, Col: 1, Message: "unterminated Runas_Spec"}
		}
		inner := s[1:end]
		s = strings.TrimSpace(s[end+1:])

		parts := strings.SplitN(inner, ":", 2)
		spec.runasUsers = splitCommaList(parts[0])
		spec.runasUsersSet = true
		if len(parts) == 2 {
			spec.runasGroups = splitCommaList(parts[1])
			spec.runasGroupsSet = true
		}
	}

	spec.tags = map[string]bool{}
	fields := splitTopLevel(s, ' ')
	i := 0
	for ; i < len(fields); i++ {
		f := fields[i]
		switch {
		case f == "":
			continue
		case strings.HasPrefix(f, "CWD="):
			dc := parseDirChange(strings.TrimPrefix(f, "CWD="))
			spec.chdir = &dc
		case strings.HasSuffix(f, ":") && isTagToken(strings.TrimSuffix(f, ":")):
			tag := strings.TrimSuffix(f, ":")
			spec.tags[tag] = true
		default:
			goto command
		}
	}
command:
	if i >= len(fields) {
		return spec, &ParseError{File: ll.file, Line: ll.line, Col: 1, Message: "missing command in CmndSpec"}
	}
	spec.command = fields[i]
	cmdName := strings.TrimLeft(spec.command, "!")
	aliasLike := cmdName != "" && cmdName[0] >= 'A' && cmdName[0] <= 'Z' &&
		strings.Trim(cmdName, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_") == ""
	if !aliasLike && cmdName != `""` && !strings.HasPrefix(cmdName, "/") {
		return spec, &ParseError{File: ll.file, Line: ll.line, Col: 1, Message: "expected an absolute command path, ALL or a Cmnd_Alias name"}
	}
	if i+1 < len(fields) {
		spec.args = fields[i+1:]
	} else {
		spec.argsAny = true
	}
	if spec.command == "\"\"" || spec.command == `""` {
		spec.args = []string{}
		spec.argsAny = false
	}

	return spec, nil
}

func parseDirChange(s string) DirChange {
	if s == "*" {
		return DirChange{Kind: DirChangeAny}
	}
	if s == "" {
		return DirChange{Kind: DirChangeNone}
	}
	return DirChange{Kind: DirChangeStrict, Path: s}
}

func isTagToken(s string) bool {
	switch s {
	case "NOPASSWD", "PASSWD", "NOEXEC", "EXEC", "SETENV", "NOSETENV":
		return true
	}
	return false
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
