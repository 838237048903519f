package policy

import (
	"strconv"
	"strings"
)

// cmndMatch is one fully-expanded (Cmnd_Alias members resolved) command
// entry ready to be tested against a Request.
type cmndMatch struct {
	path    string
	args    []string
	argsAny bool
	negated bool
}

var tagPair = map[string]string{
	"NOPASSWD": "PASSWD", "PASSWD": "NOPASSWD",
	"NOEXEC": "EXEC", "EXEC": "NOEXEC",
	"SETENV": "NOSETENV", "NOSETENV": "SETENV",
}

// resolveSticky threads Runas_Spec and tag state forward across a
// CmndSpec list so that a later entry which doesn't repeat them inherits
// whatever the previous entry on the same line established (§4.C
// "sticky" tags).
func resolveSticky(specs []cmndSpecDecl) []cmndSpecDecl {
	var out []cmndSpecDecl
	var curRunasUsers, curRunasGroups []string
	curRunasUsersSet, curRunasGroupsSet := false, false
	curTags := map[string]bool{}

	for _, s := range specs {
		if s.runasUsersSet {
			curRunasUsers, curRunasUsersSet = s.runasUsers, true
		}
		if s.runasGroupsSet {
			curRunasGroups, curRunasGroupsSet = s.runasGroups, true
		}
		for k := range s.tags {
			if pair, ok := tagPair[k]; ok {
				delete(curTags, pair)
			}
			curTags[k] = true
		}

		merged := s
		merged.runasUsers, merged.runasUsersSet = curRunasUsers, curRunasUsersSet
		merged.runasGroups, merged.runasGroupsSet = curRunasGroups, curRunasGroupsSet
		merged.tags = make(map[string]bool, len(curTags))
		for k, v := range curTags {
			merged.tags[k] = v
		}
		out = append(out, merged)
	}
	return out
}

// Evaluate applies §4.C's last-match-wins algorithm by walking the
// specifications in file order: every userSpecDecl/cmndSpecDecl that
// matches Who/Host/Runas/Command overwrites the running Decision, so the
// final matching entry in file order wins.
func (p *Policy) Evaluate(req Request) Decision {
	dec := baseDecision()
	dec = p.applyDefaults(dec, req.InvokerName, req.Host)
	dec.Allowed = false
	matched := false

	for _, us := range p.specs {
		if !matchesList(us.who, p.userAliases, func(lit string) bool { return matchWho(lit, req) }) {
			continue
		}
		if !matchesList(us.hosts, p.hostAliases, func(lit string) bool { return matchHost(lit, req) }) {
			continue
		}

		for _, cs := range resolveSticky(us.specs) {
			if !p.matchRunas(cs, req) {
				continue
			}
			for _, cm := range p.expandCmndSpecCommand(cs) {
				if !matchCommandEntry(cm, req) {
					continue
				}
				matched = true
				dec.Matched = true
				dec.Allowed = !cm.negated
				applyTags(&dec, cs.tags)
				if cs.chdir != nil {
					dec.Chdir = *cs.chdir
				}
			}
		}
	}

	if !matched {
		return Forbidden()
	}
	return dec
}

func applyTags(dec *Decision, tags map[string]bool) {
	if tags["NOPASSWD"] {
		dec.MustAuthenticate = false
	}
	if tags["PASSWD"] {
		dec.MustAuthenticate = true
	}
	if tags["NOEXEC"] {
		dec.NoExec = true
	}
	if tags["EXEC"] {
		dec.NoExec = false
	}
	if tags["SETENV"] {
		dec.SetEnv = true
	}
	if tags["NOSETENV"] {
		dec.SetEnv = false
	}
}

func matchWho(literal string, req Request) bool {
	switch {
	case strings.HasPrefix(literal, "#"):
		n, err := strconv.ParseUint(strings.TrimPrefix(literal, "#"), 10, 32)
		return err == nil && uint32(n) == req.InvokerUid
	case strings.HasPrefix(literal, "%"):
		group := strings.TrimPrefix(literal, "%")
		for _, g := range req.InvokerGroups {
			if g == group {
				return true
			}
		}
		return false
	case strings.HasPrefix(literal, "+"):
		// netgroup membership: no netgroup source is wired (§4.C Open
		// Question), so a "+netgroup" token never matches.
		return false
	default:
		return literal == req.InvokerName
	}
}

func matchHost(literal string, req Request) bool {
	return strings.EqualFold(literal, req.Host) || globMatch(strings.ToLower(literal), strings.ToLower(req.Host))
}

func (p *Policy) matchRunas(cs cmndSpecDecl, req Request) bool {
	if !cs.runasUsersSet {
		return req.TargetUser == "root" || req.TargetUser == ""
	}
	if len(cs.runasUsers) == 0 {
		// Present but empty Runas_User list ("(:group)" or "()"): §4.C says
		// this authorizes running as the invoker only, not as nobody.
		return req.TargetUser == req.InvokerName
	}
	userOK := matchesList(cs.runasUsers, p.runasAliases, func(lit string) bool { return matchRunasUser(lit, req) })
	if !userOK {
		return false
	}

	if req.TargetGroup == "" {
		return true // no explicit -g request: group authorization is implicit
	}
	if !cs.runasGroupsSet || len(cs.runasGroups) == 0 {
		return false
	}
	return matchesList(cs.runasGroups, p.runasAliases, func(lit string) bool { return matchRunasGroup(lit, req) })
}

func matchRunasUser(literal string, req Request) bool {
	if strings.HasPrefix(literal, "#") {
		n, err := strconv.ParseUint(strings.TrimPrefix(literal, "#"), 10, 32)
		return err == nil && uint32(n) == req.TargetUid
	}
	return literal == req.TargetUser
}

func matchRunasGroup(literal string, req Request) bool {
	if strings.HasPrefix(literal, "#") {
		n, err := strconv.ParseUint(strings.TrimPrefix(literal, "#"), 10, 32)
		return err == nil && uint32(n) == req.TargetGid
	}
	return literal == req.TargetGroup
}

// expandCmndSpecCommand resolves cs.command (possibly a Cmnd_Alias name)
// into its flattened, order-preserved command/argument entries.
func (p *Policy) expandCmndSpecCommand(cs cmndSpecDecl) []cmndMatch {
	if members, ok := p.cmndAliases[cs.command]; ok {
		visiting := map[string]bool{cs.command: true}
		var out []cmndMatch
		for _, m := range members {
			out = append(out, expandCommandMember(p.cmndAliases, m, visiting)...)
		}
		return out
	}
	command := cs.command
	negated := false
	for strings.HasPrefix(command, "!") {
		negated = !negated
		command = strings.TrimPrefix(command, "!")
	}
	return []cmndMatch{{path: command, args: cs.args, argsAny: cs.argsAny, negated: negated}}
}

func expandCommandMember(aliases map[string][]string, token string, visiting map[string]bool) []cmndMatch {
	negated := false
	for strings.HasPrefix(token, "!") {
		negated = !negated
		token = strings.TrimPrefix(token, "!")
	}
	token = strings.TrimSpace(token)

	if token == "ALL" {
		return []cmndMatch{{path: "ALL", negated: negated}}
	}

	if members, ok := aliases[token]; ok && !visiting[token] {
		visiting[token] = true
		defer delete(visiting, token)

		var out []cmndMatch
		for _, m := range members {
			for _, cm := range expandCommandMember(aliases, m, visiting) {
				if negated {
					cm.negated = !cm.negated
				}
				out = append(out, cm)
			}
		}
		return out
	}

	fields := splitTopLevel(token, ' ')
	if len(fields) == 0 {
		return nil
	}
	path := fields[0]
	var args []string
	argsAny := true
	if len(fields) > 1 {
		args = fields[1:]
		argsAny = false
	}
	if path == `""` {
		args = []string{}
		argsAny = false
	}
	return []cmndMatch{{path: path, args: args, argsAny: argsAny, negated: negated}}
}

func matchCommandEntry(cm cmndMatch, req Request) bool {
	if cm.path != "ALL" && !globMatch(cm.path, req.Command) {
		return false
	}
	if cm.argsAny {
		return true
	}
	if len(cm.args) == 0 {
		return len(req.Arguments) == 0
	}
	pattern := strings.Join(cm.args, " ")
	actual := strings.Join(req.Arguments, " ")
	return globMatch(pattern, actual)
}

// List produces `sudo -l`-style entries (§4.C "Listing mode"): one per
// CmndSpec, tags limited to those that changed relative to the previous
// entry within the same line.
func (p *Policy) List(who string) []ListEntry {
	var entries []ListEntry

	for _, us := range p.specs {
		if !matchesList(us.who, p.userAliases, func(lit string) bool {
			return lit == who || strings.HasPrefix(lit, "%") || strings.HasPrefix(lit, "#")
		}) {
			continue
		}

		var prevTags map[string]bool
		for _, cs := range resolveSticky(us.specs) {
			changed := map[string]bool{}
			for k, v := range cs.tags {
				if prevTags == nil || prevTags[k] != v {
					changed[k] = v
				}
			}
			prevTags = cs.tags

			var tagNames []string
			for k, v := range changed {
				if v {
					tagNames = append(tagNames, k)
				}
			}

			entries = append(entries, ListEntry{
				Who:      us.who,
				Host:     us.hosts,
				RunasU:   cs.runasUsers,
				RunasG:   cs.runasGroups,
				Tags:     tagNames,
				Commands: append([]string{cs.command}, cs.args...),
				Line:     us.line,
			})
		}
	}

	return entries
}
