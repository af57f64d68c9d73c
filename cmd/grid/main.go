package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"github.com/gosuri/uitable"
	"github.com/urfave/cli/v3"

	v1 "axiapac.com/payroll/client/v1"
	"axiapac.com/payroll/engine"
	"axiapac.com/payroll/grid"
	"axiapac.com/payroll/model"
)

type session struct {
	client *v1.PayrollClient
	engine *engine.Engine
}

func newSession(cmd *cli.Command) *session {
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	client := v1.NewPayrollClient(cmd.String("url"), cmd.String("token"))
	return &session{
		client: client,
		engine: engine.New(client.Hierarchy, engine.WithLogger(logger)),
	}
}

func (s *session) render() {
	grid.Render(color.Output, s.engine.Snapshot())
}

func tree(ctx context.Context, cmd *cli.Command) error {
	s := newSession(cmd)
	if _, err := grid.Open(ctx, s.engine, cmd.Args().First()); err != nil {
		return err
	}
	s.render()
	return nil
}

func selectNode(ctx context.Context, cmd *cli.Command) error {
	s := newSession(cmd)
	key, err := grid.Open(ctx, s.engine, cmd.Args().First())
	if err != nil {
		return err
	}
	if key == model.RootKey {
		return errors.New("a node path is required")
	}
	// a failed probe still leaves a usable selection
	if err := s.engine.Select(ctx, key); err != nil {
		slog.Warn("has-children probe failed", slog.String("error", err.Error()))
	}
	s.render()
	return nil
}

func create(ctx context.Context, cmd *cli.Command) error {
	s := newSession(cmd)
	parent, err := grid.Open(ctx, s.engine, cmd.String("parent"))
	if err != nil {
		return err
	}
	level, ok := parent.Level.Child()
	if !ok {
		return fmt.Errorf("%s cannot have children", parent.Level)
	}
	fields, err := grid.ParseAssignments(cmd.Args().Slice())
	if err != nil {
		return err
	}
	draft, err := grid.Draft(level, parent.ID, fields)
	if err != nil {
		return err
	}
	res, err := s.engine.Create(ctx, draft)
	if err != nil {
		return err
	}
	if err := s.engine.Select(ctx, res.Entity.Key()); err != nil {
		slog.Warn("has-children probe failed", slog.String("error", err.Error()))
	}
	s.render()
	return nil
}

func update(ctx context.Context, cmd *cli.Command) error {
	s := newSession(cmd)
	key, err := grid.Open(ctx, s.engine, cmd.Args().First())
	if err != nil {
		return err
	}
	if key == model.RootKey {
		return errors.New("a node path is required")
	}
	patch, err := grid.ParseAssignments(cmd.Args().Tail())
	if err != nil {
		return err
	}
	if len(patch) == 0 {
		return errors.New("nothing to update")
	}
	if _, err := s.engine.Update(ctx, key.Level, key.ID, patch); err != nil {
		return err
	}
	s.render()
	return nil
}

func remove(ctx context.Context, cmd *cli.Command) error {
	s := newSession(cmd)
	key, err := grid.Open(ctx, s.engine, cmd.Args().First())
	if err != nil {
		return err
	}
	if key == model.RootKey {
		return errors.New("a node path is required")
	}
	if err := s.engine.Select(ctx, key); err != nil {
		return err
	}
	if !s.engine.CanDelete() {
		return fmt.Errorf("%s has children and cannot be deleted", key)
	}
	if _, err := s.engine.Delete(ctx, key.Level, key.ID); err != nil {
		return err
	}
	s.render()
	return nil
}

func search(ctx context.Context, cmd *cli.Command) error {
	s := newSession(cmd)
	res, err := s.client.Hierarchy.Search(ctx, v1.SearchQuery{
		StartDate:   cmd.String("from"),
		EndDate:     cmd.String("to"),
		PayPeriods:  cmd.StringSlice("pay-period"),
		Detachments: cmd.StringSlice("detachment"),
		Shifts:      cmd.StringSlice("shift"),
	}, int(cmd.Int("limit")), int(cmd.Int("offset")))
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("EMPLOYEE"), bold.Sprint("PERIOD"), bold.Sprint("REGULAR"), bold.Sprint("OVERTIME"), bold.Sprint("NIGHT"))
	for _, ts := range res.Data {
		tbl.AddRow(ts.ID, ts.EmployeeName, ts.PayPeriod,
			strconv.FormatFloat(ts.RegularHours, 'f', 2, 64),
			strconv.FormatFloat(ts.OvertimeHours, 'f', 2, 64),
			strconv.FormatFloat(ts.NightDifferential, 'f', 2, 64))
	}
	tbl.RightAlign(3)
	tbl.RightAlign(4)
	tbl.RightAlign(5)
	_, _ = fmt.Fprintln(color.Output, tbl)
	_, _ = fmt.Fprintf(color.Output, "%d of %d  with overtime: %d  with night differential: %d\n",
		len(res.Data), res.Pagination.Total, res.Counts.WithOvertime, res.Counts.WithNightDifferential)
	return nil
}

func watch(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := newSession(cmd)
	if _, err := grid.Open(ctx, s.engine, cmd.Args().First()); err != nil {
		return err
	}
	s.render()

	return s.client.Hierarchy.Watch(ctx, func(ev v1.Event) {
		if err := grid.Follow(ctx, s.engine, ev); err != nil {
			slog.Warn("refresh failed", slog.String("event", ev.Type), slog.String("error", err.Error()))
			return
		}
		_, _ = fmt.Fprintf(color.Output, "\n%s\n", ev.Type)
		s.render()
	})
}

func main() {
	cmd := &cli.Command{
		Name:  "grid",
		Usage: "Browse and edit the timesheet hierarchy of a payroll server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8090",
				Usage:   "Payroll server base URL",
				Sources: cli.EnvVars("PAYROLL_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token",
				Sources: cli.EnvVars("PAYROLL_TOKEN"),
			},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log engine activity"},
		},
		Commands: []*cli.Command{
			{
				Name:      "tree",
				Usage:     "Show the tree expanded along a path",
				ArgsUsage: "[timesheet/dtr/timelog]",
				Action:    tree,
			},
			{
				Name:      "select",
				Usage:     "Select a node and show whether it can be deleted",
				ArgsUsage: "<path>",
				Action:    selectNode,
			},
			{
				Name:      "create",
				Usage:     "Create a node under --parent, or a timesheet without one",
				ArgsUsage: "field=value...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "parent", Usage: "Path of the parent node"},
				},
				Action: create,
			},
			{
				Name:      "update",
				Usage:     "Change fields of a node",
				ArgsUsage: "<path> field=value...",
				Action:    update,
			},
			{
				Name:      "delete",
				Usage:     "Delete a node that has no children",
				ArgsUsage: "<path>",
				Action:    remove,
			},
			{
				Name:  "search",
				Usage: "List timesheets matching filters",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "First DTR date (yyyy-MM-dd)"},
					&cli.StringFlag{Name: "to", Usage: "Last DTR date (yyyy-MM-dd)"},
					&cli.StringSliceFlag{Name: "pay-period"},
					&cli.StringSliceFlag{Name: "detachment"},
					&cli.StringSliceFlag{Name: "shift"},
					&cli.IntFlag{Name: "limit", Value: 50},
					&cli.IntFlag{Name: "offset"},
				},
				Action: search,
			},
			{
				Name:      "watch",
				Usage:     "Show the tree and keep it in sync with server changes",
				ArgsUsage: "[path]",
				Action:    watch,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("grid failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
