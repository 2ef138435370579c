package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dan-robinson-ai/judge-training-ground/shared/jsonutil"
)

func datasetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Inspect and manage stored datasets",
	}
	cmd.AddCommand(datasetsListCmd(), datasetsShowCmd(), datasetsDeleteCmd())
	return cmd
}

func datasetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, cleanup, err := buildRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			index, err := repo.ListIndex(cmd.Context())
			if err != nil {
				return err
			}
			if len(index) == 0 {
				fmt.Println("No datasets.")
				return nil
			}

			for _, item := range index {
				best := "-"
				if item.BestAccuracy != nil {
					best = fmt.Sprintf("%.1f%%", *item.BestAccuracy)
				}
				fmt.Printf("%-28s  %-30s  cases=%-4d versions=%-3d best=%s\n",
					item.ID, item.Name, item.TestCaseCount, item.PromptVersionCount, best)
			}
			return nil
		},
	}
}

func datasetsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a dataset as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, cleanup, err := buildRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			dataset, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(jsonutil.MustMarshalIndent(dataset))
			return nil
		},
	}
}

func datasetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a dataset and its index entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, cleanup, err := buildRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := repo.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}
