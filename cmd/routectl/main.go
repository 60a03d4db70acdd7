package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/config"
	"github.com/apache/shardingsphere-sub091/pkg/rulemgr"
	"github.com/apache/shardingsphere-sub091/pkg/srlog"
	"github.com/apache/shardingsphere-sub091/router/qrouter"
	"github.com/apache/shardingsphere-sub091/router/statement"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type options struct {
	rulesPath string
	logLevel  string
	prettyLog bool

	table  string
	column string
	value  string
	read   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "routectl --rules `path-to-rules`",
		Short: "inspect sharding rules and statement routes",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			srlog.ReloadLogger("", opts.logLevel, opts.prettyLog)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.rulesPath, "rules", "r", "/etc/router/rules.yaml", "path to rules file")
	rootCmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "error", "log level")
	rootCmd.PersistentFlags().BoolVar(&opts.prettyLog, "pretty-log", false, "human readable log output")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "load the rules and print the data nodes of every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}

	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "route an equality lookup on one column",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd, opts)
		},
	}
	routeCmd.Flags().StringVarP(&opts.table, "table", "t", "", "logical table")
	routeCmd.Flags().StringVarP(&opts.column, "column", "c", "", "column compared with the value")
	routeCmd.Flags().StringVarP(&opts.value, "value", "v", "", "value, integers are parsed as such")
	routeCmd.Flags().BoolVar(&opts.read, "read", true, "route a SELECT; false routes an UPDATE")
	_ = routeCmd.MarkFlagRequired("table")
	_ = routeCmd.MarkFlagRequired("column")

	rootCmd.AddCommand(checkCmd, routeCmd)
	return rootCmd
}

func loadMgr(path string) (rulemgr.RulesMgr, error) {
	cfg, err := config.LoadRulesCfg(path)
	if err != nil {
		return nil, err
	}
	mgr, err := rulemgr.NewMgr(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "rules %s rejected", path)
	}
	return mgr, nil
}

func runCheck(cmd *cobra.Command, opts *options) error {
	mgr, err := loadMgr(opts.rulesPath)
	if err != nil {
		return err
	}
	snap := mgr.Current()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "data sources: %s\n", strings.Join(snap.LogicalDataSources, ", "))
	fmt.Fprintf(out, "default data source: %s\n", snap.DefaultDataSource)

	tables := maps.Keys(snap.Sharding.Tables)
	slices.Sort(tables)
	for _, name := range tables {
		tr := snap.Sharding.Tables[name]
		nodes := make([]string, len(tr.DataNodes))
		for i, n := range tr.DataNodes {
			nodes[i] = n.String()
		}
		fmt.Fprintf(out, "table %s: %s\n", name, strings.Join(nodes, ", "))
	}
	for _, g := range snap.Sharding.BindingGroups {
		fmt.Fprintf(out, "binding: %s\n", strings.Join(g, ", "))
	}

	broadcast := maps.Keys(snap.Sharding.BroadcastTables)
	slices.Sort(broadcast)
	for _, name := range broadcast {
		fmt.Fprintf(out, "broadcast %s\n", name)
	}

	single := maps.Keys(snap.SingleTables)
	slices.Sort(single)
	for _, name := range single {
		fmt.Fprintf(out, "single %s: %s\n", name, snap.SingleTables[name])
	}

	groups := maps.Keys(snap.ReadwriteSplitting.Groups)
	slices.Sort(groups)
	for _, name := range groups {
		g := snap.ReadwriteSplitting.Groups[name]
		fmt.Fprintf(out, "group %s: write %s, read %s\n", name, g.WriteDataSource, strings.Join(g.ReadDataSources, ", "))
	}
	return nil
}

// parseValue reads integers as int64 and anything else as a string.
func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func lookupStatement(opts *options) *statement.Statement {
	col := statement.Col("", opts.column)
	val := statement.Lit(parseValue(opts.value))
	stmt := &statement.Statement{
		Tables: []statement.TableRef{{Name: opts.table}},
		Where:  statement.Eq(col, val),
	}
	if opts.read {
		stmt.Kind = statement.KindSelect
		stmt.Projection = []string{"*"}
		return stmt
	}
	stmt.Kind = statement.KindUpdate
	stmt.Assignments = []statement.Assignment{{Column: col, Value: val}}
	return stmt
}

func runRoute(cmd *cobra.Command, opts *options) error {
	mgr, err := loadMgr(opts.rulesPath)
	if err != nil {
		return err
	}
	qr, err := qrouter.NewQrouter(mgr)
	if err != nil {
		return err
	}
	rc, err := qr.Route(context.Background(), lookupStatement(opts), nil)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), rc.Explain())
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
