package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/actflow"
	"github.com/viant/actflow/internal/yml"
	"github.com/viant/actflow/runtime/bookmark"
	"github.com/viant/actflow/service/dao"
	"github.com/viant/actflow/service/dao/criteria"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

type app struct {
	out      io.Writer
	config   string
	store    string
	url      string
	logLevel string
}

func (a *app) service(ctx context.Context) (*actflow.Service, error) {
	cfg := actflow.DefaultConfig()
	if a.config != "" {
		var err error
		if cfg, err = actflow.LoadConfig(ctx, afs.New(), a.config); err != nil {
			return nil, err
		}
	}
	if a.store != "" {
		cfg.Store.Kind = a.store
	}
	if a.url != "" {
		cfg.Store.URL = a.url
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	srv, err := actflow.New(ctx, actflow.WithConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err = register(srv); err != nil {
		_ = srv.Close(ctx)
		return nil, err
	}
	return srv, nil
}

// with runs fn with a configured service and closes it afterwards.
func (a *app) with(cmd *cobra.Command, fn func(ctx context.Context, srv *actflow.Service) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	srv, err := a.service(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := srv.Close(ctx); cErr != nil && err == nil {
			err = cErr
		}
	}()
	return fn(ctx, srv)
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}
	rootCmd := &cobra.Command{
		Use:           "actflow",
		Short:         "Run durable activity workflows",
		Long:          "actflow starts and resumes sample workflow instances kept in a durable instance store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.config, "config", "c", "", "configuration URL (YAML)")
	flags.StringVar(&a.store, "store", "", "instance store kind: memory, fs or bolt")
	flags.StringVar(&a.url, "url", "", "instance store location")
	flags.StringVar(&a.logLevel, "log-level", "", "log level")

	rootCmd.AddCommand(
		a.workflowsCommand(),
		a.startCommand(),
		a.resumeCommand(),
		a.listCommand(),
		a.showCommand(),
		a.tickCommand(),
		a.cancelCommand(),
	)
	return rootCmd
}

func (a *app) workflowsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List registered workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.with(cmd, func(ctx context.Context, srv *actflow.Service) error {
				for _, name := range srv.Workflows() {
					fmt.Fprintln(a.out, name)
				}
				return nil
			})
		},
	}
}

func (a *app) startCommand() *cobra.Command {
	var keys []string
	cmd := &cobra.Command{
		Use:   "start WORKFLOW [NAME=VALUE...]",
		Short: "Start a workflow instance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := yml.ParseAssignments(args[1:])
			if err != nil {
				return err
			}
			return a.with(cmd, func(ctx context.Context, srv *actflow.Service) error {
				inst, err := srv.Start(ctx, args[0], inputs, keys...)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%v %v\n", inst.ID(), inst.State())
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&keys, "key", "k", nil, "correlation keys")
	return cmd
}

func (a *app) resumeCommand() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "resume (ID | --key KEY) BOOKMARK [VALUE]",
		Short: "Resume a bookmark of an instance",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if key == "" {
				if len(args) < 2 {
					return fmt.Errorf("instance id or --key is required")
				}
				id, args = args[0], args[1:]
			}
			name := args[0]
			var value interface{}
			if len(args) > 1 {
				var err error
				if value, err = yml.Parse(args[1]); err != nil {
					return err
				}
			}
			return a.with(cmd, func(ctx context.Context, srv *actflow.Service) error {
				var err error
				var result bookmark.Result
				if key != "" {
					result, err = srv.ResumeByKey(ctx, key, name, value)
				} else {
					result, err = srv.Resume(ctx, id, name, value)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, result)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "correlation key")
	return cmd
}

func (a *app) listCommand() *cobra.Command {
	var state, workflow string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var parameters []*dao.Parameter
			if state != "" {
				parameters = append(parameters, dao.NewParameter(criteria.State, state))
			}
			if workflow != "" {
				parameters = append(parameters, dao.NewParameter(criteria.Workflow, workflow))
			}
			return a.with(cmd, func(ctx context.Context, srv *actflow.Service) error {
				records, err := srv.List(ctx, parameters...)
				if err != nil {
					return err
				}
				for _, record := range records {
					fmt.Fprintf(a.out, "%v %v %v %v\n", record.InstanceID, record.Workflow, record.State, record.Completion)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "filter by host state")
	cmd.Flags().StringVar(&workflow, "workflow", "", "filter by workflow name")
	return cmd
}

type summary struct {
	ID         string                 `yaml:"id"`
	Workflow   string                 `yaml:"workflow"`
	State      string                 `yaml:"state"`
	Completion string                 `yaml:"completion"`
	Bookmarks  []string               `yaml:"bookmarks,omitempty"`
	Outputs    map[string]interface{} `yaml:"outputs,omitempty"`
}

func (a *app) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.with(cmd, func(ctx context.Context, srv *actflow.Service) error {
				inst, err := srv.Instance(ctx, args[0])
				if err != nil {
					return err
				}
				ret := &summary{ID: inst.ID(), Workflow: inst.Workflow(), State: inst.State().String(), Completion: inst.CompletionState().String()}
				bookmarks, err := inst.GetBookmarks(ctx)
				if err != nil {
					return err
				}
				for _, info := range bookmarks {
					ret.Bookmarks = append(ret.Bookmarks, info.Bookmark.String())
				}
				if ret.Outputs, err = inst.Outputs(ctx); err != nil {
					return err
				}
				encoder := yaml.NewEncoder(a.out)
				defer encoder.Close()
				return encoder.Encode(ret)
			})
		},
	}
}

func (a *app) tickCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run stored instances whose timers are due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.with(cmd, func(ctx context.Context, srv *actflow.Service) error {
				ids, err := srv.ResumeDue(ctx, timeout)
				for _, id := range ids {
					fmt.Fprintln(a.out, id)
				}
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "time to wait for each due instance")
	return cmd
}

func (a *app) cancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.with(cmd, func(ctx context.Context, srv *actflow.Service) error {
				return srv.Cancel(ctx, args[0])
			})
		},
	}
}
