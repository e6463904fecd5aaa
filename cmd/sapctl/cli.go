package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/catalog"
	"github.com/kec-cse/sap-points/internal/dto"
	"github.com/kec-cse/sap-points/internal/points"
	"github.com/kec-cse/sap-points/internal/sapclient"
)

var errHelp = errors.New("help provided")

type backend interface {
	sapclient.Submitter
	sapclient.StatusFetcher
	FetchNotifications(ctx context.Context, email string) ([]dto.Notification, error)
	FetchPointsReference(ctx context.Context) (dto.PointsReference, error)
}

type commandLine struct {
	backend backend
	catalog *catalog.Catalog
	table   *points.Table
	email   string
	out     io.Writer
	logger  zerolog.Logger
}

// pairs collects repeated key=value flags.
type pairs []string

func (p *pairs) String() string { return strings.Join(*p, ",") }

func (p *pairs) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	*p = append(*p, value)
	return nil
}

func (p pairs) each(fn func(key, value string) error) error {
	for _, pair := range p {
		key, value, _ := strings.Cut(pair, "=")
		if err := fn(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  catalog                              - list activity categories and criteria")
	fmt.Fprintln(cli.out, "  submit -category KEY [flags]         - submit one category to the mentor")
	fmt.Fprintln(cli.out, "  status [-email EMAIL]                - show submitted records and SAP points")
	fmt.Fprintln(cli.out, "  notifications [-email EMAIL]         - list submission updates")
	fmt.Fprintln(cli.out, "  points [-mark N] [-remote]           - convert a raw mark or print the reference table")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "catalog":
		return cli.printCatalog()
	case "submit":
		return cli.submit(ctx, args[2:])
	case "status":
		return cli.status(ctx, args[2:])
	case "notifications":
		return cli.notifications(ctx, args[2:])
	case "points":
		return cli.points(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) printCatalog() error {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	for _, category := range cli.catalog.List() {
		fmt.Fprintf(w, "%s\t%s\tmax %d\n", category.Key, category.Title, category.MaxPoints)
		for _, criterion := range category.Criteria {
			fmt.Fprintf(w, "\t  %s\t%s (%d)\n", criterion.Key, criterion.Label, criterion.Points)
		}
	}
	return w.Flush()
}

func (cli *commandLine) submit(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("submit", flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	category := cmd.String("category", "", "Category key, see the catalog command.")
	email := cmd.String("email", cli.email, "Student email.")
	mentor := cmd.String("mentor", "", "Mentor email.")
	name := cmd.String("name", "", "Student name.")
	roll := cmd.String("roll", "", "Roll number.")
	year := cmd.String("year", "", "Year of study.")
	section := cmd.String("section", "", "Section.")
	var counts, marks, files pairs
	cmd.Var(&counts, "count", "criterion=count, repeatable.")
	cmd.Var(&marks, "mark", "criterion=mark, repeatable.")
	cmd.Var(&files, "file", "label=path of a proof file, repeatable.")

	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *category == "" {
		cmd.Usage()
		return errHelp
	}

	key, err := cli.catalog.Lookup(*category)
	if err != nil {
		return err
	}

	session := sapclient.NewSession(cli.backend, cli.catalog, sapclient.StudentInfo{
		StudentName:  *name,
		RollNumber:   *roll,
		Year:         *year,
		Section:      *section,
		StudentEmail: *email,
		MentorEmail:  *mentor,
	}, cli.logger)

	draft, err := session.Open(key)
	if err != nil {
		return err
	}
	if err := counts.each(func(k, v string) error { return draft.UpdateField(sapclient.FieldCount, k, v) }); err != nil {
		return err
	}
	if err := marks.each(func(k, v string) error { return draft.UpdateField(sapclient.FieldStudentMark, k, v) }); err != nil {
		return err
	}
	if err := files.each(func(label, path string) error {
		_, err := draft.AddAttachment(sapclient.FileFromPath(path), label)
		return err
	}); err != nil {
		return err
	}

	ack, err := session.Submit(ctx, key)
	if err != nil {
		var rejected *sapclient.ApplicationRejectedError
		if errors.As(err, &rejected) {
			return fmt.Errorf("submission rejected by the server: %s", rejected.Message)
		}
		return err
	}

	fmt.Fprintf(cli.out, "submitted %s (id %d, %d attachments, claimed %d points)\n",
		ack.EventTitle, ack.ID, len(ack.Attachments), draft.ClaimedPoints())
	return nil
}

func (cli *commandLine) status(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("status", flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	email := cmd.String("email", cli.email, "Student email.")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		cmd.Usage()
		return errHelp
	}

	feed := sapclient.NewFeed(cli.backend, *email, cli.table)
	if err := feed.Refresh(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTIVITY\tSTATUS\tPOINTS\tSUBMITTED\tNOTE")
	for _, item := range feed.Items() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", item.Title, item.Badge, item.Points,
			item.SubmittedAt.Format(time.DateOnly), item.MentorNote)
	}
	fmt.Fprintf(w, "TOTAL\t\t%d\t\t\n", feed.TotalPoints())
	return w.Flush()
}

func (cli *commandLine) notifications(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("notifications", flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	email := cmd.String("email", cli.email, "Student email.")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		cmd.Usage()
		return errHelp
	}

	notifications, err := cli.backend.FetchNotifications(ctx, *email)
	if err != nil {
		return err
	}
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].UpdatedAt.After(notifications[j].UpdatedAt)
	})

	if len(notifications) == 0 {
		fmt.Fprintln(cli.out, "no submissions yet")
		return nil
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	for _, n := range notifications {
		fmt.Fprintf(w, "%s\t%s\t%s\n", n.Activity, n.Status, n.UpdatedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func (cli *commandLine) points(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("points", flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	mark := cmd.String("mark", "", "Raw mark to convert.")
	remote := cmd.Bool("remote", false, "Print the reference table served by the backend.")
	if err := cmd.Parse(args); err != nil {
		return err
	}

	if *mark != "" {
		raw, err := strconv.ParseFloat(*mark, 64)
		if err != nil {
			return fmt.Errorf("invalid mark %q: %w", *mark, err)
		}
		fmt.Fprintf(cli.out, "%s -> %d points\n", *mark, cli.table.Convert(raw))
		return nil
	}

	reference := cli.table.Reference()
	if *remote {
		fetched, err := cli.backend.FetchPointsReference(ctx)
		if err != nil {
			return err
		}
		reference = fetched
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MARKS\tPOINTS")
	for _, row := range reference.Ranges {
		fmt.Fprintf(w, "%s\t%d\n", row.Range, row.Points)
	}
	fmt.Fprintf(w, "max\t%d\n", reference.MaxPoints)
	return w.Flush()
}
