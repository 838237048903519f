package policy

import (
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// baseDecision returns the session defaults §4.E/§4.C describe before any
// Defaults line is applied.
func baseDecision() Decision {
	return Decision{
		Allowed:            true,
		MustAuthenticate:   true,
		AllowedAttempts:    3,
		CredentialValidity: 15 * time.Minute,
		Chdir:              DirChange{Kind: DirChangeNone},
		EnvKeep:            mapset.NewSet[string](),
		EnvCheck:           mapset.NewSet[string](),
		UsePty:             true,
		SetEnv:             false,
		EnvEditor:          true,
	}
}

// EnvEditorEnabled reports whether env_editor is enabled for user/host,
// for visudo's editor-invocation decision (§4.V), without requiring a
// full command Request.
func (p *Policy) EnvEditorEnabled(user, host string) bool {
	dec := p.applyDefaults(baseDecision(), user, host)
	return dec.EnvEditor
}

// applyDefaults folds every in-scope Defaults line into dec, in file
// order, so a later line overrides an earlier one (§4.C).
func (p *Policy) applyDefaults(dec Decision, user, host string) Decision {
	for _, d := range p.defaults {
		if !defaultsScopeApplies(d.scope, user, host) {
			continue
		}
		for _, s := range d.settings {
			applySetting(&dec, s)
		}
	}
	return dec
}

func defaultsScopeApplies(scope, user, host string) bool {
	if scope == "" {
		return true
	}
	parts := strings.SplitN(scope, ":", 2)
	if len(parts) != 2 {
		return false
	}
	switch parts[0] {
	case "user":
		return parts[1] == user
	case "host":
		return parts[1] == host
	case "runas":
		return true // runas-scoped defaults apply regardless of the invoking user/host
	}
	return false
}

func applySetting(dec *Decision, s defaultsSetting) {
	switch s.name {
	case "passwd_tries":
		if s.op == "=" {
			if n, err := strconv.Atoi(s.value); err == nil && n >= 0 {
				dec.AllowedAttempts = uint16(n)
			}
		}
	case "timestamp_timeout":
		if s.op == "=" {
			if n, err := strconv.Atoi(s.value); err == nil {
				dec.CredentialValidity = time.Duration(n) * time.Minute
			}
		}
	case "use_pty":
		dec.UsePty = !s.negated
	case "targetpw", "rootpw":
		// accepted, no Decision-level effect beyond influencing the
		// authenticator's target-account choice (wired at the auth layer).
	case "env_editor":
		dec.EnvEditor = !s.negated
	case "env_keep":
		applySetOp(dec.EnvKeep, s)
	case "env_check":
		applySetOp(dec.EnvCheck, s)
	case "env_delete":
		// Decision has no env_delete field: the setting is accepted and has
		// no effect. The environment builder removes only the names its
		// caller passes in env.Input.EnvDelete.
	case "secure_path":
		if s.op == "=" && !s.negated {
			dec.SecurePath = s.value
		}
	}
}

func applySetOp(set mapset.Set[string], s defaultsSetting) {
	if s.negated {
		set.Clear()
		return
	}
	items := strings.Fields(s.value)
	switch s.op {
	case "+=", "":
		for _, it := range items {
			set.Add(it)
		}
	case "-=":
		for _, it := range items {
			set.Remove(it)
		}
	case "=":
		set.Clear()
		for _, it := range items {
			set.Add(it)
		}
	}
}
