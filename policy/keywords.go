package policy

// keywords are the identifiers §4.C reserves — they can never be used as
// an alias name, and collision is a parse error for alias categories.
var keywords = map[string]bool{
	"ALL":         true,
	"CWD":         true,
	"NOPASSWD":    true,
	"PASSWD":      true,
	"NOEXEC":      true,
	"EXEC":        true,
	"SETENV":      true,
	"NOSETENV":    true,
	"Defaults":    true,
	"Cmnd_Alias":  true,
	"Runas_Alias": true,
	"User_Alias":  true,
	"Host_Alias":  true,
	"include":     true,
	"includedir":  true,
}

// defaultsSettingNames are the Defaults options §4.C/§4.E name explicitly.
// Anything else is accepted syntactically (per §6, "non-recognized
// Defaults options are accepted but marked #ignored") but has no effect.
var defaultsSettingNames = map[string]bool{
	"passwd_tries":      true,
	"timestamp_timeout": true,
	"use_pty":           true,
	"env_keep":          true,
	"env_check":         true,
	"env_delete":        true,
	"secure_path":       true,
	"targetpw":          true,
	"rootpw":            true,
	"env_editor":        true,
}

func isKeyword(s string) bool {
	return keywords[s]
}
