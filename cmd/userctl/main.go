// Command userctl manages users in the configured store.
//
//	userctl [-config file] <command> [args]
//
// Commands: create <username>, rename <id> <username>, get <id>,
// find <username>, list, delete <id>, health.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/artem13815/users/pkg/config"
	"github.com/artem13815/users/pkg/user"
)

var (
	errUsage     = errors.New("usage: userctl [-config file] create|rename|get|find|list|delete|health [args]")
	errNotFound  = errors.New("not found")
	errUnhealthy = errors.New("storage is not ready")
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("userctl: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("userctl", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	command, rest := fs.Arg(0), fs.Args()[1:]

	// Load configuration from file/env/.env
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	svc := user.NewService(st.users)

	switch command {
	case "create":
		if len(rest) != 1 {
			return errUsage
		}
		u, err := svc.Register(ctx, rest[0])
		if err != nil {
			return err
		}
		printUser(out, u)

	case "rename":
		if len(rest) != 2 {
			return errUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		u, err := svc.Rename(ctx, id, rest[1])
		if err != nil {
			return err
		}
		printUser(out, u)

	case "get":
		if len(rest) != 1 {
			return errUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		u, ok, err := svc.Get(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return errNotFound
		}
		printUser(out, u)

	case "find":
		if len(rest) != 1 {
			return errUsage
		}
		u, ok, err := svc.Lookup(ctx, rest[0])
		if err != nil {
			return err
		}
		if !ok {
			return errNotFound
		}
		printUser(out, u)

	case "list":
		users, err := svc.List(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			printUser(out, u)
		}

	case "delete":
		if len(rest) != 1 {
			return errUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		removed, err := svc.Remove(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted=%t\n", removed)

	case "health":
		healthy := true
		for _, r := range st.readiness.Report(ctx) {
			status := "ok"
			if r.Err != nil {
				healthy = false
				status = r.Err.Error()
			}
			fmt.Fprintf(out, "%s\t%s\n", r.Name, status)
		}
		if !healthy {
			return errUnhealthy
		}

	default:
		return fmt.Errorf("unknown command %q: %w", command, errUsage)
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printUser(out io.Writer, u user.User) {
	fmt.Fprintf(out, "%d\t%s\t%s\n", u.ID, u.Username, u.CreatedAt.Format(time.RFC3339))
}
