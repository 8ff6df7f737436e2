// Command kegctl manages the keg inventory through the Kegstock API.
//
//	kegctl [-api URL] list|low
//	kegctl [-api URL] add NAME [COUNT]
//	kegctl [-api URL] in|out|set ID N
//	kegctl [-api URL] delete [-yes] ID
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/kegstock/kegstock/internal/client"
	"github.com/kegstock/kegstock/internal/model"
)

const usage = `usage: kegctl [flags] <command> [args]

commands:
  list                 show every beer type
  low                  show beer types at or below the low stock threshold
  add NAME [COUNT]     add a beer type with COUNT kegs (default 0)
  in ID N              add N kegs to a beer type
  out ID N             remove N kegs from a beer type
  set ID N             set the keg count after a stock take
  delete [-yes] ID     delete a beer type

flags:
`

func main() {
	var (
		apiURL  = flag.String("api", envOr("KEGSTOCK_API_URL", "http://localhost:8080"), "Kegstock API base URL")
		timeout = flag.Duration("timeout", client.DefaultTimeout, "Request timeout")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c, err := client.New(*apiURL, client.WithHTTPClient(client.NewHTTPClient(*timeout)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	store := client.NewStore(c, nil)
	store.Notices().Subscribe(func(n client.Notice) {
		fmt.Fprintf(os.Stderr, "%s: %s\n", n.Title, n.Message)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli{store: store, out: os.Stdout, in: os.Stdin}
	if err := app.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr)
			flag.Usage()
			os.Exit(2)
		}
		// Store failures were already reported as notices.
		os.Exit(1)
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

type cli struct {
	store *client.Store
	out   io.Writer
	in    io.Reader
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		list, err := c.store.BeerTypes(ctx)
		if err != nil {
			return err
		}
		c.print(list)
	case "low":
		list, err := c.store.LowStock(ctx)
		if err != nil {
			return err
		}
		c.print(list)
	case "add":
		if len(args) < 1 || len(args) > 2 {
			return usageError("add takes NAME and an optional COUNT")
		}
		var count *int
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return usageError("COUNT must be an integer")
			}
			count = &n
		}
		if _, err := c.store.Create(ctx, args[0], count); err != nil {
			return err
		}
		return c.list(ctx)
	case "in", "out", "set":
		id, n, err := parseIDAndNumber(args)
		if err != nil {
			return err
		}
		switch cmd {
		case "in":
			_, err = c.store.AddKegs(ctx, id, n)
		case "out":
			_, err = c.store.RemoveKegs(ctx, id, n)
		default:
			_, err = c.store.SetKegCount(ctx, id, n)
		}
		if err != nil {
			return err
		}
		return c.list(ctx)
	case "delete":
		return c.delete(ctx, args)
	default:
		return usageError(fmt.Sprintf("unknown command %q", cmd))
	}
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() != 1 {
		return usageError("delete takes exactly one ID")
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}

	if !*yes {
		list, err := c.store.BeerTypes(ctx)
		if err != nil {
			return err
		}
		name := strconv.FormatInt(id, 10)
		for _, bt := range list {
			if bt.ID == id {
				name = bt.Name
				break
			}
		}
		if !c.confirm(fmt.Sprintf("Delete %s? This cannot be undone. [y/N] ", name)) {
			fmt.Fprintln(c.out, "cancelled")
			return nil
		}
	}

	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	return c.list(ctx)
}

func (c *cli) confirm(prompt string) bool {
	fmt.Fprint(c.out, prompt)
	line, _ := bufio.NewReader(c.in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (c *cli) list(ctx context.Context) error {
	list, err := c.store.BeerTypes(ctx)
	if err != nil {
		return err
	}
	c.print(list)
	return nil
}

func (c *cli) print(list []model.BeerType) {
	if len(list) == 0 {
		fmt.Fprintln(c.out, "No beer types in inventory.")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKEGS\t")
	for _, bt := range list {
		marker := ""
		if bt.LowStock() {
			marker = "LOW STOCK"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", bt.ID, bt.Name, bt.KegCount, marker)
	}
	_ = tw.Flush()
}

func parseIDAndNumber(args []string) (int64, int, error) {
	if len(args) != 2 {
		return 0, 0, usageError("expected ID and N")
	}
	id, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, usageError("N must be an integer")
	}
	return id, n, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError(fmt.Sprintf("invalid ID %q", s))
	}
	return id, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
