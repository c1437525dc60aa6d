package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/yuin/goldmark"

	"github.com/pandonetwork/pando/internal/blockstore"
	"github.com/pandonetwork/pando/internal/cli"
	"github.com/pandonetwork/pando/internal/core"
	"github.com/pandonetwork/pando/internal/progress"
	"github.com/pandonetwork/pando/internal/termcolor"
	"github.com/pandonetwork/pando/internal/textmerge"
	"github.com/pandonetwork/pando/internal/watch"
	"github.com/pandonetwork/pando/internal/workspace"
)

func registerCommands(app *cli.App, cw, errw *termcolor.Writer, ws **core.Workspace) {
	cmd := newInitCommand(cw, errw)
	app.Register(&cmd)

	builders := []func(*termcolor.Writer, *termcolor.Writer, **core.Workspace) cli.Command{
		newStatusCommand,
		newStageCommand,
		newSnapshotCommand,
		newBranchCommand,
		newCheckoutCommand,
		newMergeCommand,
		newLogCommand,
		newShowCommand,
		newWatchCommand,
	}
	for _, build := range builders {
		cmd := build(cw, errw, ws)
		app.Register(&cmd)
	}
}

func newInitCommand(cw, errw *termcolor.Writer) cli.Command {
	return cli.Command{
		Name:    "init",
		Summary: "create a new workspace in the current directory",
		Usage:   "pando init",
		Run: func(args []string) int {
			root, err := os.Getwd()
			if err != nil {
				return fail(errw, "%v", err)
			}
			layout := core.NewLayout(root)
			store, err := blockstore.Open(layout.ObjectsDir)
			if err != nil {
				return fail(errw, "%v", err)
			}
			wd := workspace.New(root)
			if _, err := core.Init(layout, store, wd, textmerge.New()); err != nil {
				return fail(errw, "%v", err)
			}
			fmt.Fprintf(cw, "Initialized empty workspace in %s\n", layout.MetaDir)
			return 0
		},
	}
}

func newStatusCommand(cw, errw *termcolor.Writer, wsp **core.Workspace) cli.Command {
	return cli.Command{
		Name:           "status",
		Summary:        "show staged, modified, and untracked paths",
		Usage:          "pando status [-s]",
		NeedsWorkspace: true,
		Run: func(args []string) int {
			fs := flag.NewFlagSet("status", flag.ContinueOnError)
			short := fs.Bool("s", false, "porcelain short format")
			if err := fs.Parse(args); err != nil {
				return 1
			}
			ws := *wsp
			var sets core.DerivedSets
			err := withLockShared(ws.Layout, func() error {
				var err error
				sets, err = ws.Status()
				return err
			})
			if err != nil {
				return fail(errw, "%v", err)
			}
			if *short {
				printStatusShort(cw, sets)
			} else {
				printStatusLong(cw, ws, sets)
			}
			return 0
		},
	}
}

func printStatusShort(cw *termcolor.Writer, sets core.DerivedSets) {
	for _, p := range sets.Staged {
		fmt.Fprintf(cw, "A  %s\n", p)
	}
	for _, p := range sets.Modified {
		fmt.Fprintf(cw, " M %s\n", p)
	}
	for _, p := range sets.Deleted {
		fmt.Fprintf(cw, " D %s\n", p)
	}
	for _, p := range sets.Untracked {
		fmt.Fprintf(cw, "?? %s\n", p)
	}
}

func printStatusLong(cw *termcolor.Writer, ws *core.Workspace, sets core.DerivedSets) {
	fmt.Fprintf(cw, "On branch %s\n", cw.BoldCyan(ws.Branches.Current()))
	section := func(title string, paths []string, color func(string) string) {
		if len(paths) == 0 {
			return
		}
		fmt.Fprintf(cw, "\n%s:\n", title)
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(cw, "\t%s\n", color(p))
		}
	}
	section("Staged for snapshot", sets.Staged, cw.Green)
	section("Modified", sets.Modified, cw.Yellow)
	section("Deleted", sets.Deleted, cw.Red)
	section("Untracked", sets.Untracked, cw.Red)
	if len(sets.Staged)+len(sets.Modified)+len(sets.Deleted)+len(sets.Untracked) == 0 {
		fmt.Fprintln(cw, "\nNothing to snapshot, working directory clean")
	}
}

func newStageCommand(cw, errw *termcolor.Writer, wsp **core.Workspace) cli.Command {
	return cli.Command{
		Name:           "stage",
		Summary:        "stage the given paths for the next snapshot",
		Usage:          "pando stage <path>...",
		NeedsWorkspace: true,
		Run: func(args []string) int {
			if len(args) == 0 {
				return fail(errw, "stage requires at least one path")
			}
			ws := *wsp
			err := withLock(ws.Layout, func() error {
				return ws.Stage(args)
			})
			if err != nil {
				return fail(errw, "%v", err)
			}
			return 0
		},
	}
}

func newSnapshotCommand(cw, errw *termcolor.Writer, wsp **core.Workspace) cli.Command {
	return cli.Command{
		Name:           "snapshot",
		Summary:        "record a new snapshot of the staged tree",
		Usage:          "pando snapshot -m <message>",
		NeedsWorkspace: true,
		Run: func(args []string) int {
			fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
			msg := fs.String("m", "", "snapshot message")
			if err := fs.Parse(args); err != nil {
				return 1
			}
			if *msg == "" {
				return fail(errw, "snapshot requires -m <message>")
			}
			ws := *wsp
			author := authorName(ws.Layout)
			var id core.CID
			err := withLock(ws.Layout, func() error {
				var err error
				id, err = ws.Snapshot(author, *msg, time.Now())
				return err
			})
			if err != nil {
				if errors.Is(err, core.ErrNothingToSnapshot) {
					return fail(errw, "nothing staged to snapshot")
				}
				return fail(errw, "%v", err)
			}
			fmt.Fprintf(cw, "[%s] %s\n", ws.Branches.Current(), cw.Green(id.String()))
			return 0
		},
	}
}

func newBranchCommand(cw, errw *termcolor.Writer, wsp **core.Workspace) cli.Command {
	return cli.Command{
		Name:           "branch",
		Summary:        "list or create branches",
		Usage:          "pando branch [name]",
		NeedsWorkspace: true,
		Run: func(args []string) int {
			ws := *wsp
			if len(args) == 0 {
				current := ws.Branches.Current()
				for _, name := range ws.Branches.List() {
					if name == current {
						fmt.Fprintf(cw, "* %s\n", cw.Green(name))
					} else {
						fmt.Fprintf(cw, "  %s\n", name)
					}
				}
				return 0
			}
			err := withLock(ws.Layout, func() error {
				return ws.BranchCreate(args[0])
			})
			if err != nil {
				return fail(errw, "%v", err)
			}
			return 0
		},
	}
}

func newCheckoutCommand(cw, errw *termcolor.Writer, wsp **core.Workspace) cli.Command {
	return cli.Command{
		Name:           "checkout",
		Summary:        "switch the current branch and reconcile the working directory",
		Usage:          "pando checkout <branch>",
		NeedsWorkspace: true,
		Run: func(args []string) int {
			if len(args) != 1 {
				return fail(errw, "checkout requires exactly one branch name")
			}
			ws := *wsp
			sp := progress.New(fmt.Sprintf("switching to %s", args[0]))
			sp.Start()
			err := withLock(ws.Layout, func() error {
				return ws.Checkout(args[0])
			})
			sp.Stop()
			if err != nil {
				return reportWorkspaceErr(errw, err)
			}
			fmt.Fprintf(cw, "Switched to branch %s\n", cw.Green(args[0]))
			return 0
		},
	}
}

func newMergeCommand(cw, errw *termcolor.Writer, wsp **core.Workspace) cli.Command {
	return cli.Command{
		Name:           "merge",
		Summary:        "merge another branch into the current branch",
		Usage:          "pando merge <branch>",
		NeedsWorkspace: true,
		Run: func(args []string) int {
			if len(args) != 1 {
				return fail(errw, "merge requires exactly one branch name")
			}
			ws := *wsp
			author := authorName(ws.Layout)
			preHead, err := ws.Branches.Head(ws.Branches.Current())
			if err != nil {
				return fail(errw, "%v", err)
			}
			var id core.CID
			err = withLock(ws.Layout, func() error {
				id, err = ws.Merge(args[0], author, time.Now())
				return err
			})
			if err != nil {
				var conflict *core.MergeConflictError
				if errors.As(err, &conflict) {
					fmt.Fprintf(errw, "Automatic merge failed; fix conflicts and snapshot the result:\n")
					paths := make([]string, 0, len(conflict.Conflicts))
					for p := range conflict.Conflicts {
						paths = append(paths, p)
					}
					sort.Strings(paths)
					for _, p := range paths {
						fmt.Fprintf(errw, "\t%s: %s\n", conflict.Conflicts[p], p)
					}
					return 1
				}
				return reportWorkspaceErr(errw, err)
			}
			if id.IsEmpty() || id.Equal(preHead) {
				fmt.Fprintln(cw, "Already up to date")
				return 0
			}
			fmt.Fprintf(cw, "Merge complete: %s\n", cw.Green(id.String()))
			return 0
		},
	}
}

func reportWorkspaceErr(errw *termcolor.Writer, err error) int {
	var dirty *core.DirtyWorkspaceError
	if errors.As(err, &dirty) {
		fmt.Fprintln(errw, "pando: working directory has uncommitted changes:")
		for _, p := range dirty.Modified {
			fmt.Fprintf(errw, "\tmodified: %s\n", p)
		}
		for _, p := range dirty.Unsnapshot {
			fmt.Fprintf(errw, "\tstaged:   %s\n", p)
		}
		return 1
	}
	return fail(errw, "%v", err)
}

func newLogCommand(cw, errw *termcolor.Writer, wsp **core.Workspace) cli.Command {
	return cli.Command{
		Name:           "log",
		Summary:        "show snapshot history",
		Usage:          "pando log [--oneline] [-n N] [--format=html] [branch]",
		NeedsWorkspace: true,
		Run: func(args []string) int {
			fs := flag.NewFlagSet("log", flag.ContinueOnError)
			oneline := fs.Bool("oneline", false, "compact one-line-per-snapshot format")
			limit := fs.Int("n", 0, "limit the number of snapshots shown")
			format := fs.String("format", "text", "output format: text or html")
			if err := fs.Parse(args); err != nil {
				return 1
			}
			ws := *wsp
			branch := ws.Branches.Current()
			if fs.NArg() > 0 {
				branch = fs.Arg(0)
			}
			var snaps []*core.Snapshot
			var ids []core.CID
			err := withLockShared(ws.Layout, func() error {
				var err error
				snaps, ids, err = ws.Log(branch, *limit)
				return err
			})
			if err != nil {
				return fail(errw, "%v", err)
			}
			if *format == "html" {
				return printLogHTML(cw, errw, snaps, ids)
			}
			printLog(cw, snaps, ids, *oneline)
			return 0
		},
	}
}

func printLog(cw *termcolor.Writer, snaps []*core.Snapshot, ids []core.CID, oneline bool) {
	for i, s := range snaps {
		if oneline {
			fmt.Fprintf(cw, "%s %s\n", cw.Yellow(ids[i].String()[:12]), firstLine(s.Message))
			continue
		}
		fmt.Fprintf(cw, "%s %s\n", cw.BoldCyan("snapshot"), ids[i].String())
		fmt.Fprintf(cw, "Author: %s\n", s.Author)
		fmt.Fprintf(cw, "Date:   %s\n\n", time.Unix(s.Timestamp, 0).Format(time.RFC1123Z))
		fmt.Fprintf(cw, "    %s\n\n", s.Message)
	}
}

func printLogHTML(cw, errw *termcolor.Writer, snaps []*core.Snapshot, ids []core.CID) int {
	var md bytes.Buffer
	for i, s := range snaps {
		fmt.Fprintf(&md, "### %s\n\n*%s — %s*\n\n%s\n\n", ids[i].String(), s.Author,
			time.Unix(s.Timestamp, 0).Format(time.RFC1123Z), s.Message)
	}
	var html bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &html); err != nil {
		return fail(errw, "render log: %v", err)
	}
	fmt.Fprint(cw, html.String())
	return 0
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func newShowCommand(cw, errw *termcolor.Writer, wsp **core.Workspace) cli.Command {
	return cli.Command{
		Name:           "show",
		Summary:        "show a snapshot's metadata and message",
		Usage:          "pando show <snapshot-or-branch>",
		NeedsWorkspace: true,
		Run: func(args []string) int {
			if len(args) != 1 {
				return fail(errw, "show requires a snapshot CID or branch name")
			}
			ws := *wsp
			var snap *core.Snapshot
			var id core.CID
			err := withLockShared(ws.Layout, func() error {
				var err error
				id, err = core.ParseCID(args[0])
				if err != nil {
					id, err = ws.Branches.Head(args[0])
					if err != nil {
						return fmt.Errorf("%s is not a known snapshot or branch", args[0])
					}
				}
				obj, err := ws.Store.GetNode(id)
				if err != nil {
					return err
				}
				s, ok := obj.(*core.Snapshot)
				if !ok {
					return fmt.Errorf("%s is not a snapshot", id)
				}
				snap = s
				return nil
			})
			if err != nil {
				return fail(errw, "%v", err)
			}
			tbl := pterm.TableData{
				{"field", "value"},
				{"snapshot", id.String()},
				{"author", snap.Author},
				{"date", time.Unix(snap.Timestamp, 0).Format(time.RFC1123Z)},
				{"tree", snap.Tree.String()},
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(tbl).Render(); err != nil {
				return fail(errw, "%v", err)
			}
			fmt.Fprintf(cw, "\n    %s\n", snap.Message)
			return 0
		},
	}
}

func newWatchCommand(cw, errw *termcolor.Writer, wsp **core.Workspace) cli.Command {
	return cli.Command{
		Name:           "watch",
		Summary:        "serve live workspace status over WebSocket",
		Usage:          "pando watch [-addr host:port]",
		NeedsWorkspace: true,
		Run: func(args []string) int {
			fs := flag.NewFlagSet("watch", flag.ContinueOnError)
			addr := fs.String("addr", "localhost:4884", "address to listen on")
			if err := fs.Parse(args); err != nil {
				return 1
			}
			ws := *wsp
			logger := slog.New(slog.NewTextHandler(errw, nil))
			w := watch.New(ws, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mux := http.NewServeMux()
			mux.Handle("/ws", w.Handler())
			srv := &http.Server{Addr: *addr, Handler: mux}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			go w.Run(ctx)

			fmt.Fprintf(cw, "Watching workspace, serving ws://%s/ws\n", *addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fail(errw, "%v", err)
			}
			return 0
		},
	}
}
