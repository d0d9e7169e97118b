package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type ListDatabasesCmd struct{}

func NewListDatabasesCmd() *ListDatabasesCmd {
	return &ListDatabasesCmd{}
}

func (c *ListDatabasesCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "list-databases",
		Short: "List all databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, gw, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			names, err := gw.ListDatabases(ctx)
			if err != nil {
				return fmt.Errorf("failed to list databases: %w", err)
			}
			if flags.json {
				return printJSON(cmd.OutOrStdout(), names)
			}
			printDatabases(cmd.OutOrStdout(), names)
			return nil
		},
	}
}

type ListTablesCmd struct{}

func NewListTablesCmd() *ListTablesCmd {
	return &ListTablesCmd{}
}

func (c *ListTablesCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-tables",
		Short: "List the tables of a database with their columns and CREATE TABLE statements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := cmd.Flags().GetString("database")
			if err != nil {
				return fmt.Errorf("failed to get database flag: %w", err)
			}
			like, err := cmd.Flags().GetString("like")
			if err != nil {
				return fmt.Errorf("failed to get like flag: %w", err)
			}
			showCreate, err := cmd.Flags().GetBool("show-create")
			if err != nil {
				return fmt.Errorf("failed to get show-create flag: %w", err)
			}

			flags, gw, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			tables, err := gw.ListTables(ctx, database, like)
			if err != nil {
				return err
			}
			if flags.json {
				return printJSON(cmd.OutOrStdout(), tables)
			}
			printTables(cmd.OutOrStdout(), tables, showCreate)
			return nil
		},
	}

	cmd.Flags().StringP("database", "d", "", "database (postgres: schema) to list tables from")
	cmd.Flags().String("like", "", "LIKE pattern to filter table names")
	cmd.Flags().Bool("show-create", false, "print the CREATE TABLE statement of each table")
	_ = cmd.MarkFlagRequired("database")
	return cmd
}

type DescribeTableCmd struct{}

func NewDescribeTableCmd() *DescribeTableCmd {
	return &DescribeTableCmd{}
}

func (c *DescribeTableCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe-table <table>",
		Short: "Show the columns and CREATE TABLE statement of one table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := cmd.Flags().GetString("database")
			if err != nil {
				return fmt.Errorf("failed to get database flag: %w", err)
			}

			flags, gw, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			table, err := gw.DescribeTable(ctx, database, args[0])
			if err != nil {
				return err
			}
			if flags.json {
				return printJSON(cmd.OutOrStdout(), table)
			}
			printTable(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringP("database", "d", "", "database (postgres: schema) of the table")
	_ = cmd.MarkFlagRequired("database")
	return cmd
}

type QueryCmd struct{}

func NewQueryCmd() *QueryCmd {
	return &QueryCmd{}
}

func (c *QueryCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only SELECT query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, gw, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rows, err := gw.RunSelectQuery(ctx, args[0])
			if err != nil {
				return fmt.Errorf("error running query: %w", err)
			}
			if flags.json {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			printRows(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}
