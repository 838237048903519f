// Command sudo-list implements sudo's listing mode (§4.C "Listing mode")
// as a standalone binary, sharing the policy package with cmd/sudo
// rather than duplicating the match/list logic.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/trifectatechfoundation/sudo-rs-sub002/identity"
	"github.com/trifectatechfoundation/sudo-rs-sub002/policy"
	"github.com/trifectatechfoundation/sudo-rs-sub002/sudolog"
)

type options struct {
	User    string `short:"U" long:"user" description:"list another user's entries"`
	Verbose []bool `short:"v" long:"verbose" description:"repeat for more detail"`
}

const sudoersPath = "/etc/sudoers"

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

	who := opts.User
	if who == "" {
		invoker, err := identity.LookupUserByUid(uint32(os.Getuid()))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		who = invoker.Name
	}

	pol, _, err := policy.Load(sudoersPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	host, _ := os.Hostname()

	entries := pol.List(who)
	if len(entries) == 0 {
		fmt.Printf("Sorry, user %s may not run sudo on %s.\n", who, host)
		return 1
	}

	fmt.Printf("User %s may run the following commands on %s:\n", who, host)
	for _, e := range entries {
		runas := "(" + strings.Join(e.RunasU, ",") + ")"
		if len(e.RunasG) > 0 {
			runas = "(" + strings.Join(e.RunasU, ",") + ":" + strings.Join(e.RunasG, ",") + ")"
		}
		tags := ""
		if len(e.Tags) > 0 {
			tags = strings.Join(e.Tags, " ") + ": "
		}
		fmt.Printf("    %s %s%s\n", runas, tags, strings.Join(e.Commands, " "))
		if len(opts.Verbose) > 0 {
			fmt.Printf("        (line %d)\n", e.Line)
		}
	}
	return 0
}
