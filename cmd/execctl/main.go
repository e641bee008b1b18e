// Command execctl is a command line client for the execledger API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"execledger/internal/events"
	exphandler "execledger/internal/expenditure/handler"
	jwttoken "execledger/internal/jwt_token"
	"execledger/internal/platform/config"
	policyhandler "execledger/internal/policy/handler"
	id "execledger/pkg/domain"
)

const usage = `usage: execctl [--server URL] [--token TOKEN] <command> [args]

commands:
  policy create (--root HEX | --content TEXT)
  policy get <policy-id>
  policy count
  policy list [--offset N] [--limit N]
  log append <policy-id> <message>
  log get <policy-id> <log-index>
  log count <policy-id>
  expenditure record <policy-id> --recipient ADDR (--amount WEI | --ether ETH) [--description TEXT]
  events replay [--after N] [--limit N]
  events watch [--after N]
  token <subject> [--ttl DURATION]
  hash <text>
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

// cli carries the global flags into each command.
type cli struct {
	client *Client
	out    io.Writer
	getenv func(string) string
}

type command func(ctx context.Context, c *cli, args []string) error

var commands = map[string]map[string]command{
	"policy": {
		"create": policyCreate,
		"get":    policyGet,
		"count":  policyCount,
		"list":   policyList,
	},
	"log": {
		"append": logAppend,
		"get":    logGet,
		"count":  logCount,
	},
	"expenditure": {
		"record": expenditureRecord,
	},
	"events": {
		"replay": eventsReplay,
		"watch":  eventsWatch,
	},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := pflag.NewFlagSet("execctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	server := fs.String("server", envOr(getenv, "EXECLEDGER_SERVER", "http://localhost:8080"), "API base URL")
	token := fs.String("token", getenv("EXECLEDGER_TOKEN"), "bearer token for write commands")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	c := &cli{client: NewClient(*server, *token), out: stdout, getenv: getenv}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch rest[0] {
	case "token":
		err = issueToken(c, rest[1:])
	case "hash":
		err = hash(c, rest[1:])
	default:
		group, ok := commands[rest[0]]
		if !ok || len(rest) < 2 {
			fmt.Fprint(stderr, usage)
			return 2
		}
		cmd, ok := group[rest[1]]
		if !ok {
			fmt.Fprintf(stderr, "unknown command %q\n\n%s", rest[0]+" "+rest[1], usage)
			return 2
		}
		err = cmd(ctx, c, rest[2:])
	}
	if err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "%s\n\n%s", usageErr, usage)
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func subFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func positional(fs *pflag.FlagSet, args []string, want ...string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usageError(fs.Name() + ": " + err.Error())
	}
	if fs.NArg() != len(want) {
		return nil, usageError(fmt.Sprintf("%s: expected %s", fs.Name(), strings.Join(want, " ")))
	}
	return fs.Args(), nil
}

func policyCreate(ctx context.Context, c *cli, args []string) error {
	fs := subFlags("policy create")
	root := fs.String("root", "", "0x-prefixed 32-byte merkle root")
	content := fs.String("content", "", "text hashed into the merkle root by the server")
	if _, err := positional(fs, args); err != nil {
		return err
	}
	if (*root == "") == (*content == "") {
		return usageError("policy create: exactly one of --root or --content is required")
	}
	resp, err := c.client.CreatePolicy(ctx, policyhandler.CreatePolicyRequest{MerkleRoot: *root, Content: *content})
	if err != nil {
		return err
	}
	return c.print(resp)
}

func policyGet(ctx context.Context, c *cli, args []string) error {
	pos, err := positional(subFlags("policy get"), args, "<policy-id>")
	if err != nil {
		return err
	}
	resp, err := c.client.GetPolicy(ctx, pos[0])
	if err != nil {
		return err
	}
	return c.print(resp)
}

func policyCount(ctx context.Context, c *cli, args []string) error {
	if _, err := positional(subFlags("policy count"), args); err != nil {
		return err
	}
	resp, err := c.client.CountPolicies(ctx)
	if err != nil {
		return err
	}
	return c.print(resp)
}

func policyList(ctx context.Context, c *cli, args []string) error {
	fs := subFlags("policy list")
	offset := fs.Uint64("offset", 0, "first policy id")
	limit := fs.Uint64("limit", 20, "page size")
	if _, err := positional(fs, args); err != nil {
		return err
	}
	resp, err := c.client.ListPolicies(ctx, *offset, *limit)
	if err != nil {
		return err
	}
	return c.print(resp)
}

func logAppend(ctx context.Context, c *cli, args []string) error {
	pos, err := positional(subFlags("log append"), args, "<policy-id>", "<message>")
	if err != nil {
		return err
	}
	resp, err := c.client.AppendLog(ctx, pos[0], pos[1])
	if err != nil {
		return err
	}
	return c.print(resp)
}

func logGet(ctx context.Context, c *cli, args []string) error {
	pos, err := positional(subFlags("log get"), args, "<policy-id>", "<log-index>")
	if err != nil {
		return err
	}
	resp, err := c.client.GetLog(ctx, pos[0], pos[1])
	if err != nil {
		return err
	}
	return c.print(resp)
}

func logCount(ctx context.Context, c *cli, args []string) error {
	pos, err := positional(subFlags("log count"), args, "<policy-id>")
	if err != nil {
		return err
	}
	resp, err := c.client.CountLogs(ctx, pos[0])
	if err != nil {
		return err
	}
	return c.print(resp)
}

func expenditureRecord(ctx context.Context, c *cli, args []string) error {
	fs := subFlags("expenditure record")
	recipient := fs.String("recipient", "", "recipient address")
	amount := fs.String("amount", "", "amount in wei")
	ether := fs.String("ether", "", "amount in ether, e.g. 1.5")
	description := fs.String("description", "", "free text description")
	pos, err := positional(fs, args, "<policy-id>")
	if err != nil {
		return err
	}
	if *recipient == "" {
		return usageError("expenditure record: --recipient is required")
	}
	if (*amount == "") == (*ether == "") {
		return usageError("expenditure record: exactly one of --amount or --ether is required")
	}

	req := exphandler.RecordExpenditureRequest{Recipient: *recipient, AmountEther: *ether, Description: *description}
	if *amount != "" {
		a, err := id.ParseAmount(*amount)
		if err != nil {
			return usageError("expenditure record: " + err.Error())
		}
		req.Amount = &a
	}
	resp, err := c.client.RecordExpenditure(ctx, pos[0], req)
	if err != nil {
		return err
	}
	return c.print(resp)
}

func eventsReplay(ctx context.Context, c *cli, args []string) error {
	fs := subFlags("events replay")
	after := fs.Uint64("after", 0, "return events with a greater sequence")
	limit := fs.Uint64("limit", 0, "maximum number of events")
	if _, err := positional(fs, args); err != nil {
		return err
	}
	resp, err := c.client.ReplayEvents(ctx, *after, *limit)
	if err != nil {
		return err
	}
	return c.print(resp)
}

func eventsWatch(ctx context.Context, c *cli, args []string) error {
	fs := subFlags("events watch")
	after := fs.Uint64("after", 0, "replay retained events with a greater sequence first")
	if _, err := positional(fs, args); err != nil {
		return err
	}
	enc := json.NewEncoder(c.out)
	return c.client.WatchEvents(ctx, *after, func(e events.Event) error {
		return enc.Encode(e)
	})
}

// issueToken signs a token locally with the server's configured key, for
// development setups that have no identity provider.
func issueToken(c *cli, args []string) error {
	fs := subFlags("token")
	ttl := fs.Duration("ttl", 0, "token lifetime (defaults to the configured token ttl)")
	pos, err := positional(fs, args, "<subject>")
	if err != nil {
		return err
	}

	cfg := config.Default()
	if key := c.getenv("EXECLEDGER_JWT_SIGNING_KEY"); key != "" {
		cfg.Auth.JWTSigningKey = key
	}
	cfg.Auth.Issuer = envOr(c.getenv, "EXECLEDGER_JWT_ISSUER", cfg.Auth.Issuer)
	cfg.Auth.Audience = envOr(c.getenv, "EXECLEDGER_JWT_AUDIENCE", cfg.Auth.Audience)
	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	} else if raw := c.getenv("EXECLEDGER_TOKEN_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse EXECLEDGER_TOKEN_TTL: %w", err)
		}
		lifetime = d
	}

	svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	tok, err := svc.GenerateToken(id.NewPrincipal(pos[0]).String(), lifetime)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, tok)
	return err
}

func hash(c *cli, args []string) error {
	pos, err := positional(subFlags("hash"), args, "<text>")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, id.MerkleRootFromText(pos[0]).String())
	return err
}
