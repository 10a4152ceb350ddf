package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) error
	Follow(ctx context.Context, args []string) error
	Post(ctx context.Context, args []string) error
	Like(ctx context.Context, args []string) error
	Comment(ctx context.Context, args []string) error
	Feed(ctx context.Context) error
	DeleteMe(ctx context.Context) error
}

// runREPL reads commands line by line from in and dispatches them to a
// until EOF or "exit"/"quit". Handlers report their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("gs (%s)> ", statusFn()))
		line, err := in.ReadString('\n')
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
				printlnFn("Available commands: me, follow <user>, post [image], like <post>, comment <post> [text], feed, delete-me, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		case "logout", "me", "follow", "post", "like", "comment", "feed", "delete-me":
			if !a.isLoggedIn() {
				printlnFn("Please login first")
				continue
			}
			dispatch(ctx, a, cmd, args)

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) {
	switch cmd {
	case "logout":
		_ = a.Logout(ctx)
	case "me":
		_ = a.Me(ctx)
	case "follow":
		_ = a.Follow(ctx, args)
	case "post":
		_ = a.Post(ctx, args)
	case "like":
		_ = a.Like(ctx, args)
	case "comment":
		_ = a.Comment(ctx, args)
	case "feed":
		_ = a.Feed(ctx)
	case "delete-me":
		_ = a.DeleteMe(ctx)
	}
}
