// Command visudo drives the visudo package's state machine (§4.V) over
// the real policy file, or the single file given by -f.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/trifectatechfoundation/sudo-rs-sub002/policy"
	"github.com/trifectatechfoundation/sudo-rs-sub002/sudolog"
	"github.com/trifectatechfoundation/sudo-rs-sub002/visudo"
)

type options struct {
	File string `short:"f" long:"file" description:"restrict editing to a single policy file"`
	Check bool  `short:"c" long:"check" description:"check the policy file's syntax and exit"`
}

const defaultSudoers = "/etc/sudoers"

func main() {
	sudolog.Init(sudolog.Options{})
	os.Exit(run())
}

func run() int {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	target := opts.File
	if target == "" {
		target = defaultSudoers
	}

	if opts.Check {
		_, warnings, err := policy.Load(target)
		if err != nil {
			if _, ok := err.(*policy.ParseError); ok {
				fmt.Fprintf(os.Stderr, "%s: syntax error: %s\n", target, err)
			} else {
				fmt.Fprintln(os.Stderr, err)
			}
			return 1
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "%s: %s\n", w.File, w.Message)
		}
		fmt.Printf("%s: parsed OK\n", target)
		return 0
	}

	files := []string{target}
	if opts.File == "" {
		if session, err := visudo.Open(target); err == nil {
			if included, err := session.IncludedFiles(); err == nil {
				files = append(files, included...)
			}
			session.Close()
		}
	}

	for _, f := range files {
		if err := editOne(f); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	return 0
}

// editOne drives one Locked → Edited → Validated → Committed cycle,
// looping through Prompt(error) until the operator resolves it.
func editOne(target string) error {
	session, err := visudo.Open(target)
	if err != nil {
		if busy, ok := err.(*visudo.BusyError); ok {
			return fmt.Errorf("visudo: %s: busy, try again later", busy.Path)
		}
		return err
	}
	defer session.Close()

	envEditorEnabled := true
	if pol, _, err := policy.Load(target); err == nil {
		host, _ := os.Hostname()
		envEditorEnabled = pol.EnvEditorEnabled(currentUserName(), host)
	}

	for {
		if err := session.Edit(envEditorEnabled); err != nil {
			return err
		}

		verr := session.Validate()
		if verr == nil {
			return session.Commit(false)
		}

		fmt.Printf("%s\n", verr)
		answer, err := promptWhatNow()
		if err != nil {
			return err
		}
		switch answer {
		case visudo.AnswerReedit:
			continue
		case visudo.AnswerAbandon:
			return session.Commit(true)
		case visudo.AnswerForceSave:
			return session.Commit(false)
		}
	}
}

func currentUserName() string {
	if name := os.Getenv("SUDO_USER"); name != "" {
		return name
	}
	return os.Getenv("USER")
}

func promptWhatNow() (visudo.PromptAnswer, error) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("What now? ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		if len(line) == 0 {
			continue
		}
		if answer, ok := visudo.ParsePromptAnswer(line[0]); ok {
			return answer, nil
		}
	}
}
