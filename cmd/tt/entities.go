package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"testtracker/internal/app"
	"testtracker/internal/config"
	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/builder"
	"testtracker/sdk/go/resolve"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage testtracker.yml"}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(viper.GetString("base-url"))), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config (secrets omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := printJSON(cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, "warning:", err)
			}
			return nil
		},
	}
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Inspect projects"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				items, err := d.Client.Projects(ctx)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, p := range items {
					rows = append(rows, table.Row{p.ID, p.Name, p.SuiteMode, p.IsCompleted})
				}
				return printTable(items, table.Row{"ID", "Name", "Suite mode", "Completed"}, rows)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <name|id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				id, err := projectID(ctx, d, args[0])
				if err != nil {
					return err
				}
				p, err := d.Client.Project(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	})
	return cmd
}

func projectID(ctx context.Context, d *app.Deps, arg string) (int64, error) {
	r := ref(arg)
	if r.ID != 0 {
		return r.ID, nil
	}
	return d.Resolver.ResolveProject(ctx, r.Name, true)
}

// scope is the --project/--suite/--section trio shared by listing commands.
type scope struct {
	project, suite, section string
}

func (s *scope) flags(cmd *cobra.Command, withSection bool) {
	cmd.Flags().StringVar(&s.project, "project", "", "project name or id")
	cmd.Flags().StringVar(&s.suite, "suite", "", "suite name or id (defaults to the project's only suite)")
	if withSection {
		cmd.Flags().StringVar(&s.section, "section", "", "section name or id")
	}
	_ = cmd.MarkFlagRequired("project")
}

func (s scope) resolve(ctx context.Context, d *app.Deps) (resolve.IDs, error) {
	p := resolve.Path{}
	r := ref(s.project)
	p.ProjectID, p.Project = r.ID, r.Name
	if s.suite != "" {
		r = ref(s.suite)
		p.SuiteID, p.Suite = r.ID, r.Name
	}
	if s.section != "" {
		r = ref(s.section)
		p.SectionID, p.Section = r.ID, r.Name
	}
	return d.Resolver.ResolvePath(ctx, p, resolve.Strict)
}

func suiteCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "suite", Short: "Inspect suites"}
	var project string
	list := &cobra.Command{
		Use:   "list",
		Short: "List suites of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				pid, err := projectID(ctx, d, project)
				if err != nil {
					return err
				}
				items, err := d.Client.Suites(ctx, pid)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, s := range items {
					rows = append(rows, table.Row{s.ID, s.Name, s.Description})
				}
				return printTable(items, table.Row{"ID", "Name", "Description"}, rows)
			})
		},
	}
	list.Flags().StringVar(&project, "project", "", "project name or id")
	_ = list.MarkFlagRequired("project")
	cmd.AddCommand(list)
	return cmd
}

func sectionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "section", Short: "Inspect sections"}
	var s scope
	list := &cobra.Command{
		Use:   "list",
		Short: "List sections of a suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				ids, err := s.resolve(ctx, d)
				if err != nil {
					return err
				}
				items, err := d.Client.Sections(ctx, ids.ProjectID, ids.SuiteID)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, sec := range items {
					rows = append(rows, table.Row{sec.ID, sec.Name, optionalID(sec.ParentID), sec.Depth})
				}
				return printTable(items, table.Row{"ID", "Name", "Parent", "Depth"}, rows)
			})
		},
	}
	s.flags(list, false)
	cmd.AddCommand(list)
	return cmd
}

func caseCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "case", Short: "Inspect test cases"}

	var ls scope
	list := &cobra.Command{
		Use:   "list",
		Short: "List test cases of a suite or section",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				ids, err := ls.resolve(ctx, d)
				if err != nil {
					return err
				}
				items, err := d.Client.Cases(ctx, ids.ProjectID, ids.SuiteID, ids.SectionID)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, c := range items {
					rows = append(rows, table.Row{c.ID, c.Title, c.SectionID, c.TypeID, c.Refs})
				}
				return printTable(items, table.Row{"ID", "Title", "Section", "Type", "Refs"}, rows)
			})
		},
	}
	ls.flags(list, true)
	cmd.AddCommand(list)

	var rs scope
	resolveCmd := &cobra.Command{
		Use:   "resolve <title>",
		Short: "Resolve a test case title to its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				ids, err := rs.resolve(ctx, d)
				if err != nil {
					return err
				}
				id, err := d.Resolver.ResolveCase(ctx, ids.ProjectID, ids.SuiteID, ids.SectionID, args[0], true)
				if err != nil {
					return err
				}
				ids.CaseID = id
				if viper.GetBool("json") {
					return printJSON(ids)
				}
				fmt.Println(id)
				return nil
			})
		},
	}
	rs.flags(resolveCmd, true)
	cmd.AddCommand(resolveCmd)
	return cmd
}

func milestoneCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "milestone", Short: "Manage milestones"}

	var project string
	list := &cobra.Command{
		Use:   "list",
		Short: "List milestones of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				pid, err := projectID(ctx, d, project)
				if err != nil {
					return err
				}
				items, err := d.Client.Milestones(ctx, pid)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, m := range items {
					due := ""
					if m.DueOn != nil {
						due = time.Unix(*m.DueOn, 0).UTC().Format(time.DateOnly)
					}
					rows = append(rows, table.Row{m.ID, m.Name, optionalID(m.ParentID), due, m.IsCompleted})
				}
				return printTable(items, table.Row{"ID", "Name", "Parent", "Due", "Completed"}, rows)
			})
		},
	}
	list.Flags().StringVar(&project, "project", "", "project name or id")
	_ = list.MarkFlagRequired("project")
	cmd.AddCommand(list)

	var createProject, name, description, parent, due string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a milestone unless one with the name exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := builder.Milestone(ref(createProject), name)
			if description != "" {
				spec = spec.WithDescription(description)
			}
			if parent != "" {
				spec = spec.WithParent(ref(parent))
			}
			if due != "" {
				t, err := time.Parse(time.DateOnly, due)
				if err != nil {
					return fmt.Errorf("--due: %w", err)
				}
				spec = spec.WithDueOn(t)
			}
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				id, err := builder.EnsureMilestone(ctx, d.Resolver, d.Client, spec)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int64{"id": id})
				}
				fmt.Println(id)
				return nil
			})
		},
	}
	create.Flags().StringVar(&createProject, "project", "", "project name or id")
	create.Flags().StringVar(&name, "name", "", "milestone name")
	create.Flags().StringVar(&description, "description", "", "description")
	create.Flags().StringVar(&parent, "parent", "", "parent milestone name or id")
	create.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	_ = create.MarkFlagRequired("project")
	_ = create.MarkFlagRequired("name")
	cmd.AddCommand(create)
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "run", Short: "Manage test runs"}

	var project string
	list := &cobra.Command{
		Use:   "list",
		Short: "List runs of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				pid, err := projectID(ctx, d, project)
				if err != nil {
					return err
				}
				items, err := d.Client.Runs(ctx, pid)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, r := range items {
					rows = append(rows, table.Row{r.ID, r.Name, r.SuiteID, optionalID(r.MilestoneID), r.IncludeAll, r.IsCompleted})
				}
				return printTable(items, table.Row{"ID", "Name", "Suite", "Milestone", "All cases", "Completed"}, rows)
			})
		},
	}
	list.Flags().StringVar(&project, "project", "", "project name or id")
	_ = list.MarkFlagRequired("project")
	cmd.AddCommand(list)

	var (
		createProject, name, suite, milestone, assignee, description, refs string
		caseIDs                                                            []int64
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a run unless one with the name exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := builder.Run(ref(createProject), name)
			if suite != "" {
				spec = spec.InSuite(ref(suite))
			}
			if milestone != "" {
				spec = spec.WithMilestone(ref(milestone))
			}
			if assignee != "" {
				spec = spec.AssignedTo(ref(assignee))
			}
			if description != "" {
				spec = spec.WithDescription(description)
			}
			if refs != "" {
				spec = spec.WithRefs(refs)
			}
			if len(caseIDs) > 0 {
				spec = spec.WithCases(caseIDs...)
			}
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				id, err := builder.EnsureRun(ctx, d.Resolver, d.Client, spec)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int64{"id": id})
				}
				fmt.Println(id)
				return nil
			})
		},
	}
	create.Flags().StringVar(&createProject, "project", "", "project name or id")
	create.Flags().StringVar(&name, "name", "", "run name")
	create.Flags().StringVar(&suite, "suite", "", "suite name or id")
	create.Flags().StringVar(&milestone, "milestone", "", "milestone name or id")
	create.Flags().StringVar(&assignee, "assignee", "", "user name, email or id")
	create.Flags().StringVar(&description, "description", "", "description")
	create.Flags().StringVar(&refs, "refs", "", "references")
	create.Flags().Int64SliceVar(&caseIDs, "case-ids", nil, "restrict the run to these case ids")
	_ = create.MarkFlagRequired("project")
	_ = create.MarkFlagRequired("name")
	cmd.AddCommand(create)

	var closeProject string
	closeCmd := &cobra.Command{
		Use:   "close <name|id>",
		Short: "Close a run; closed runs accept no more results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := ref(args[0])
			if r.ID == 0 && closeProject == "" {
				return errors.New("--project is required to close a run by name")
			}
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				spec := builder.Run(ref(closeProject), r.Name).WithID(r.ID)
				if r.ID != 0 {
					spec = spec.Update(false)
				}
				resolved, err := spec.Materialize(ctx, d.Resolver)
				if err != nil {
					return err
				}
				if !resolved.Exists() {
					return fmt.Errorf("run %q: %w", r.Name, trackersdk.ErrNotFound)
				}
				run, err := resolved.Close(ctx, d.Client)
				if err != nil {
					return err
				}
				return printJSON(run)
			})
		},
	}
	closeCmd.Flags().StringVar(&closeProject, "project", "", "project name or id")
	cmd.AddCommand(closeCmd)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Look up users"}
	cmd.AddCommand(&cobra.Command{
		Use:   "find <name|email>",
		Short: "Resolve a user by name or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				id, err := d.Resolver.ResolveUser(ctx, args[0], true)
				if err != nil {
					return err
				}
				users, err := d.Client.Users(ctx)
				if err != nil {
					return err
				}
				for _, u := range users {
					if u.ID == id {
						return printTable(u, table.Row{"ID", "Name", "Email", "Active"}, []table.Row{{u.ID, u.Name, u.Email, u.IsActive}})
					}
				}
				return fmt.Errorf("user %d: %w", id, trackersdk.ErrNotFound)
			})
		},
	})
	return cmd
}
