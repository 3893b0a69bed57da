package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/pressroom/internal/project"
)

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsArchiveCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
	projectsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (active|archived|deleted)")
	projectsDeleteCmd.Flags().BoolVar(&deletePermanent, "permanent", false, "remove the project's storage tree irreversibly")
	rootCmd.AddCommand(projectsCmd)
}

var (
	listStatus      string
	deletePermanent bool
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ps, _, cleanup, err := openBackend()
		if err != nil {
			return err
		}
		defer cleanup()

		var status project.ProjectStatus
		if listStatus != "" {
			status, err = project.ParseProjectStatus(listStatus)
			if err != nil {
				return err
			}
		}

		summaries, err := ps.List(context.Background(), status)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No projects")
			return nil
		}

		fmt.Printf("%-36s %-10s %-18s %-20s %s\n", "ID", "STATUS", "MILESTONE", "UPDATED", "NAME")
		for _, s := range summaries {
			milestone := string(s.CurrentMilestone)
			if milestone == "" {
				milestone = "-"
			}
			fmt.Printf("%-36s %-10s %-18s %-20s %s\n",
				s.ID,
				s.Status,
				milestone,
				s.UpdatedAt.Local().Format("2006-01-02 15:04"),
				s.Name,
			)
		}
		return nil
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ps, _, cleanup, err := openBackend()
		if err != nil {
			return err
		}
		defer cleanup()

		p, err := ps.Create(context.Background(), args[0], nil)
		if err != nil {
			return err
		}
		fmt.Println(p.ID)
		return nil
	},
}

var projectsArchiveCmd = &cobra.Command{
	Use:   "archive <project-id>",
	Short: "Archive a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ps, _, cleanup, err := openBackend()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := ps.Archive(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("archived")
		return nil
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project (soft by default)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ps, _, cleanup, err := openBackend()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := ps.Delete(context.Background(), args[0], deletePermanent); err != nil {
			return err
		}
		if deletePermanent {
			fmt.Println("permanently deleted (cost history retained)")
		} else {
			fmt.Println("soft deleted")
		}
		return nil
	},
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ps, _, cleanup, err := openBackend()
		if err != nil {
			return err
		}
		defer cleanup()

		p, err := ps.Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("project %q not found", args[0])
		}
		out, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	projectsCmd.AddCommand(projectsShowCmd)
}
