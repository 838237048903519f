package policy

import "fmt"

// ParseError is the PolicyParse error kind (§7): a sudoers syntax error,
// always naming the offending file/line/column.
type ParseError struct {
	File    string
	Line    int
	Col     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Message)
}

// InsecureError is the PolicyInsecure error kind (§7): the root policy
// file fails the ownership/mode invariant of §3.
type InsecureError struct {
	Path   string
	Reason string
}

func (e *InsecureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}
