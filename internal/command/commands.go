package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shepherrrd/schemasync/internal/migrations"
)

type MigrateCommand struct {
	*Meta
}

func (c *MigrateCommand) Synopsis() string {
	return "Synchronize schemas and apply pending updates"
}

func (c *MigrateCommand) Help() string {
	return strings.TrimSpace(`
Usage: schemasync migrate [options] [module]

  Synchronizes the declared tables of every module (or of one module) with
  the database, then applies the updates listed in each module's manifest
  that have not run yet.

Options:
`+commonHelp+`
  -safe               Never drop columns or undeclared keys.
  -ignore-errors      Log failed updates and continue; they are retried on
                      the next run.
  -dry-run            Print the DDL and the pending updates without
                      changing anything.
`)
}

func (c *MigrateCommand) Run(args []string) int {
	var f flags
	fs := c.flagSet("migrate", &f, true)
	if err := fs.Parse(args); err != nil {
		return c.fail(err)
	}
	module, err := moduleArg(fs.Args())
	if err != nil {
		return c.fail(err)
	}
	s, err := c.open(&f)
	if err != nil {
		return c.fail(err)
	}
	defer s.Close()

	var rep *migrations.Report
	if module != "" {
		rep, err = s.runner.RunModule(context.Background(), module)
	} else {
		rep, err = s.runner.Run(context.Background())
	}
	if rep != nil && f.dryRun {
		if rep.Script != "" {
			c.UI.Output(strings.TrimRight(rep.Script, "\n"))
		}
		printPending(c.Meta, rep.Pending)
	}
	if err != nil {
		return c.fail(err)
	}
	if f.dryRun {
		return 0
	}
	for _, a := range rep.Applied {
		c.UI.Info(fmt.Sprintf("applied %s/%s", a.Module, a.Update))
	}
	if rep.Skipped != nil {
		for _, e := range rep.Skipped.Errors {
			c.UI.Warn(fmt.Sprintf("skipped: %s", e))
		}
	}
	c.UI.Output(fmt.Sprintf("Run %s: %d DDL statements executed, %d updates applied.", rep.RunID, rep.Executed, len(rep.Applied)))
	return 0
}

type ExportCommand struct {
	*Meta
}

func (c *ExportCommand) Synopsis() string {
	return "Print the DDL a migration would execute"
}

func (c *ExportCommand) Help() string {
	return strings.TrimSpace(`
Usage: schemasync export [options] [module]

  Prints the CREATE TABLE and ALTER TABLE statements that would bring the
  database in line with the declared tables, without executing them.

Options:
` + commonHelp)
}

func (c *ExportCommand) Run(args []string) int {
	var f flags
	fs := c.flagSet("export", &f, false)
	if err := fs.Parse(args); err != nil {
		return c.fail(err)
	}
	module, err := moduleArg(fs.Args())
	if err != nil {
		return c.fail(err)
	}
	s, err := c.open(&f)
	if err != nil {
		return c.fail(err)
	}
	defer s.Close()

	var ids []string
	if module != "" {
		ids = []string{module}
	}
	script, err := s.runner.Export(context.Background(), ids...)
	if err != nil {
		return c.fail(err)
	}
	if script != "" {
		c.UI.Output(strings.TrimRight(script, "\n"))
	}
	return 0
}

type PendingCommand struct {
	*Meta
}

func (c *PendingCommand) Synopsis() string {
	return "List updates not applied yet"
}

func (c *PendingCommand) Help() string {
	return strings.TrimSpace(`
Usage: schemasync pending [options] [module]

  Lists, per module, the updates the next migration would apply.

Options:
` + commonHelp)
}

func (c *PendingCommand) Run(args []string) int {
	var f flags
	fs := c.flagSet("pending", &f, false)
	if err := fs.Parse(args); err != nil {
		return c.fail(err)
	}
	module, err := moduleArg(fs.Args())
	if err != nil {
		return c.fail(err)
	}
	s, err := c.open(&f)
	if err != nil {
		return c.fail(err)
	}
	defer s.Close()

	var ids []string
	if module != "" {
		ids = []string{module}
	}
	pending, err := s.runner.Pending(context.Background(), ids...)
	if err != nil {
		return c.fail(err)
	}
	printPending(c.Meta, pending)
	return 0
}

func printPending(m *Meta, pending map[string][]string) {
	if len(pending) == 0 {
		m.UI.Output("No pending updates.")
		return
	}
	mods := make([]string, 0, len(pending))
	for id := range pending {
		mods = append(mods, id)
	}
	sort.Strings(mods)
	for _, id := range mods {
		m.UI.Output(fmt.Sprintf("%s: %s", id, strings.Join(pending[id], ", ")))
	}
}

type StatusCommand struct {
	*Meta
}

func (c *StatusCommand) Synopsis() string {
	return "Show the stored version of every module"
}

func (c *StatusCommand) Help() string {
	return strings.TrimSpace(`
Usage: schemasync status [options]

  Shows the version recorded in the ledger for every module.

Options:
` + commonHelp)
}

func (c *StatusCommand) Run(args []string) int {
	var f flags
	fs := c.flagSet("status", &f, false)
	if err := fs.Parse(args); err != nil {
		return c.fail(err)
	}
	s, err := c.open(&f)
	if err != nil {
		return c.fail(err)
	}
	defer s.Close()

	versions, err := s.runner.Versions(context.Background())
	if err != nil {
		return c.fail(err)
	}
	if len(versions) == 0 {
		c.UI.Output("No modules migrated yet.")
		return 0
	}
	for _, v := range versions {
		c.UI.Output(fmt.Sprintf("%-24s %s  (updated %s)", v.ModuleID, v.Version, v.UpdatedAt.Format("2006-01-02 15:04:05")))
	}
	return 0
}
