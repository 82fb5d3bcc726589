package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/winnow"
	"github.com/aretw0/winnow/pkg/ports"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage persisted learner projects",
	Long:  `List and inspect project documents in the configured store.`,
}

var projectsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all known projects",
	Run: func(cmd *cobra.Command, args []string) {
		store, closer := getStore(cmd)
		defer closer()

		ids, err := store.List(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing projects: %v\n", err)
			os.Exit(1)
		}

		if len(ids) == 0 {
			fmt.Println("No projects found.")
			return
		}

		fmt.Println("Projects:")
		for _, id := range ids {
			fmt.Println("- " + id)
		}
	},
}

var projectsInspectCmd = &cobra.Command{
	Use:   "inspect <project-id>",
	Short: "Print a project document as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, closer := getStore(cmd)
		defer closer()

		state, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading project %q: %v\n", args[0], err)
			os.Exit(1)
		}

		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling project: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	},
}

func getStore(cmd *cobra.Command) (ports.ProjectStore, func()) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	store, closer, err := winnow.NewStore(cfg)
	if err != nil {
		fmt.Printf("Error opening store: %v\n", err)
		os.Exit(1)
	}
	if closer == nil {
		closer = func() error { return nil }
	}
	return store, func() { _ = closer() }
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsLsCmd)
	projectsCmd.AddCommand(projectsInspectCmd)
}
