package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Recover(ctx context.Context) error
	Resend(ctx context.Context) error
	Verify(ctx context.Context) error
	Complete(ctx context.Context) error
	Me(ctx context.Context) error
	Upload(ctx context.Context, path string) error
}

// runREPL reads commands line by line and dispatches them to a until EOF or
// "exit". Command errors are reported by the commands themselves, so the loop
// ignores them. Commands prompt on the same reader, so it must not be wrapped
// in another buffer.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("accountctl %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: me, upload <path>, logout, recover, resend, verify, complete, exit")
			} else {
				printlnFn("Available commands: register, login, recover, resend, verify, complete, upload <path>, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "recover":
			_ = a.Recover(ctx)

		case "resend":
			_ = a.Resend(ctx)

		case "verify":
			_ = a.Verify(ctx)

		case "complete":
			_ = a.Complete(ctx)

		case "me":
			_ = a.Me(ctx)

		case "upload":
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			_ = a.Upload(ctx, path)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
