// Command noodlectl is a CLI client for the Noodle module API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/and161185/noodle/internal/auth"
	"github.com/and161185/noodle/internal/model"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `noodlectl
Usage:
  noodlectl -addr URL <cmd> [args]

Commands:
  version
  token    -sub <user> [-ttl 1h] [-secret key]   (signs and saves a dev token; secret defaults to JWT_SECRET)
  list     [-limit n] [-cursor id] [-archived active|archived|all]
  get      -id <uuid>
  create   -name <name> -code <code> [-desc text] [-icon t] [-color t] [-credits n]
  update   -id <uuid> [-name] [-code] [-desc] [-clear-desc] [-icon] [-color] [-credits]
  archive  -id <uuid>
  recover  -id <uuid>
  touch    -id <uuid>
`)
	os.Exit(2)
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "version":
		fmt.Printf("noodlectl %s (%s)\n", version, buildDate)

	case "token":
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		sub := fs.String("sub", "", "user id")
		ttl := fs.Duration("ttl", time.Hour, "token lifetime")
		secret := fs.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing key")
		_ = fs.Parse(args)
		if *sub == "" || *secret == "" {
			fmt.Fprintln(os.Stderr, "need -sub and -secret (or JWT_SECRET)")
			os.Exit(1)
		}
		tok, exp, err := auth.Issue([]byte(*secret), *sub, *ttl)
		if err != nil {
			fail(err)
		}
		if err := saveToken(tok, exp); err != nil {
			fail(err)
		}
		fmt.Printf("token saved, expires %s\n", exp.UTC().Format(time.RFC3339))

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		limit := fs.Int("limit", 0, "page size (default server-side)")
		cursor := fs.String("cursor", "", "next-page cursor")
		archived := fs.String("archived", "all", "active|archived|all")
		_ = fs.Parse(args)

		in, err := listInput(*limit, *cursor, *archived)
		if err != nil {
			fail(err)
		}
		out, err := authed(*addr).query(ctx, "module.getUserModules", in)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "get":
		out, err := authed(*addr).query(ctx, "module.getById", idInput("get", args))
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		name := fs.String("name", "", "module name")
		code := fs.String("code", "", "module code")
		desc := fs.String("desc", "", "description")
		icon := fs.String("icon", "", "icon token")
		color := fs.String("color", "", "color token")
		credits := fs.Int("credits", 0, "credits")
		_ = fs.Parse(args)

		in := model.CreateModuleInput{Name: *name, Code: *code}
		set := setFlags(fs)
		if set["desc"] {
			in.Description = desc
		}
		if set["icon"] {
			in.Icon = icon
		}
		if set["color"] {
			in.Color = color
		}
		if set["credits"] {
			in.Credits = credits
		}
		out, err := authed(*addr).mutate(ctx, "module.create", in)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "update":
		fs := flag.NewFlagSet("update", flag.ExitOnError)
		id := fs.String("id", "", "module id")
		name := fs.String("name", "", "module name")
		code := fs.String("code", "", "module code")
		desc := fs.String("desc", "", "description")
		clearDesc := fs.Bool("clear-desc", false, "remove the description")
		icon := fs.String("icon", "", "icon token")
		color := fs.String("color", "", "color token")
		credits := fs.Int("credits", 0, "credits")
		_ = fs.Parse(args)

		in := model.UpdateModuleInput{ID: *id}
		set := setFlags(fs)
		if set["name"] {
			in.Name = name
		}
		if set["code"] {
			in.Code = code
		}
		if set["desc"] {
			in.Description = desc
		}
		if *clearDesc {
			empty := ""
			in.Description = &empty
		}
		if set["icon"] {
			in.Icon = icon
		}
		if set["color"] {
			in.Color = color
		}
		if set["credits"] {
			in.Credits = credits
		}
		out, err := authed(*addr).mutate(ctx, "module.update", in)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "archive", "recover", "touch":
		proc := map[string]string{
			"archive": "module.archive",
			"recover": "module.recover",
			"touch":   "module.updateLastVisited",
		}[cmd]
		out, err := authed(*addr).mutate(ctx, proc, idInput(cmd, args))
		if err != nil {
			fail(err)
		}
		printJSON(out)

	default:
		usage()
	}
}

// ---- helpers ----

func authed(addr string) *client {
	tok, err := loadToken()
	if err != nil {
		fail(err)
	}
	return newClient(addr, tok)
}

func idInput(name string, args []string) model.ModuleIDInput {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	id := fs.String("id", "", "module id")
	_ = fs.Parse(args)
	if *id == "" {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}
	return model.ModuleIDInput{ID: *id}
}

func listInput(limit int, cursor, archived string) (model.ListModulesInput, error) {
	in := model.ListModulesInput{Limit: limit}
	if cursor != "" {
		in.Cursor = &cursor
	}
	switch strings.ToLower(archived) {
	case "", "all":
	case "active":
		v := false
		in.Archived = &v
	case "archived":
		v := true
		in.Archived = &v
	default:
		return in, fmt.Errorf("bad -archived %q (want active, archived or all)", archived)
	}
	return in, nil
}

// setFlags reports which flags were given explicitly.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func printJSON(raw json.RawMessage) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		// если не JSON, выведем как есть
		fmt.Println(string(raw))
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: %v\n", ae)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
