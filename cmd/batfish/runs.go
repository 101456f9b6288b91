package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/batfish/batfish-sub054/internal/snapshot"
)

func newRunsCmd(configPath *string) *cobra.Command {
	var storeDir string
	var jsonOutput bool

	openStore := func() (*snapshot.Store, error) {
		dir := storeDir
		if dir == "" {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return nil, err
			}
			dir = cfg.Store.Dir
		}
		return snapshot.NewStore(dir)
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored processing runs",
	}
	runsCmd.PersistentFlags().StringVar(&storeDir, "store", "", "Run store directory (default from config)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tNODES\tTAG")
			for _, r := range store.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status, r.NodeCount, r.Tag)
			}
			return tw.Flush()
		},
	}

	diffCmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare two runs by ID or tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			old, err := findRun(store, args[0])
			if err != nil {
				return err
			}
			next, err := findRun(store, args[1])
			if err != nil {
				return err
			}
			d, err := snapshot.Diff(old, next, store)
			if err != nil {
				return err
			}
			if jsonOutput {
				data, err := json.MarshalIndent(d, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), d.Format())
			return nil
		},
	}
	diffCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output diff as JSON")

	tagCmd := &cobra.Command{
		Use:   "tag ID TAG",
		Short: "Tag a stored run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			return store.Tag(args[0], args[1])
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			return store.Delete(args[0])
		},
	}

	runsCmd.AddCommand(listCmd, diffCmd, tagCmd, deleteCmd)
	return runsCmd
}

// findRun accepts a run ID or a tag.
func findRun(store *snapshot.Store, ref string) (*snapshot.Run, error) {
	if run, err := store.Load(ref); err == nil {
		return run, nil
	}
	return store.FindByTag(ref)
}
