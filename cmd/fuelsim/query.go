package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cyclus/fuelsim/internal/record"
	"github.com/cyclus/fuelsim/internal/record/memorybackend"
	"github.com/cyclus/fuelsim/internal/record/sqlitebackend"
)

func queryCmd() *cobra.Command {
	var (
		dbPath string
		table  string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query a recorded table from a completed run's backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(dbPath, table)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the sqlite output backend (required)")
	cmd.Flags().StringVar(&table, "table", "", "table name, e.g. AgentEntry, Transactions, Resources (required)")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("table")

	return cmd
}

func runQuery(dbPath, table string) error {
	backend, err := openQueryBackend(dbPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	rows, err := backend.Query(table, nil)
	if err != nil {
		return err
	}
	return printRows(os.Stdout, rows)
}

func openQueryBackend(path string) (record.Backend, error) {
	if path == ":memory:" {
		return memorybackend.New(), nil
	}
	return sqlitebackend.Open(path)
}

// printRows renders query rows as newline-delimited JSON objects;
// encoding/json sorts map keys, so output is diffable across runs without
// fuelsim reordering fields itself.
func printRows(w *os.File, rows []record.Row) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("fuelsim: encode row: %w", err)
		}
	}
	return nil
}
