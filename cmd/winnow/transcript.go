package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/winnow"
	"github.com/aretw0/winnow/internal/presentation/tui"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript <project-id>",
	Short: "Render a project's conversation as a readable transcript",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, closer := getStore(cmd)
		defer closer()

		state, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading project %q: %v\n", args[0], err)
			os.Exit(1)
		}

		plain, _ := cmd.Flags().GetBool("plain")
		if !plain && term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(winnow.Version)
			width, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil || width <= 0 || width > 100 {
				width = 100
			}
			render := tui.NewRenderer(width)
			out, err := render(transcriptMarkdown(state))
			if err == nil {
				fmt.Print(out)
				return
			}
			// Fall back to plain output on render failure.
		}
		fmt.Print(transcriptMarkdown(state))
	},
}

// transcriptMarkdown lays the conversation out as markdown, one section per
// entry, with the convergence status appended.
func transcriptMarkdown(state *domain.ProjectState) string {
	var b strings.Builder

	title := state.Topic
	if title == "" {
		title = state.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if len(state.Conversation) == 0 {
		b.WriteString("_No conversation yet._\n")
	}
	for _, entry := range state.Conversation {
		speaker := "Learner"
		if entry.Role == domain.RoleCollaborator {
			speaker = "Collaborator"
		}
		if entry.StageTag != "" {
			fmt.Fprintf(&b, "## %s (%s)\n\n", speaker, entry.StageTag)
		} else {
			fmt.Fprintf(&b, "## %s\n\n", speaker)
		}
		b.WriteString(entry.Content)
		b.WriteString("\n\n")
	}

	sess := state.Session()
	fmt.Fprintf(&b, "---\n\n**Stage:** %s", sess.Stage)
	if sess.SubPhase != "" {
		fmt.Fprintf(&b, " / %s", sess.SubPhase)
	}
	b.WriteString("\n")
	if len(sess.IdeaBank.Ideas) > 0 {
		b.WriteString("\n**Banked ideas:**\n\n")
		for _, idea := range sess.IdeaBank.Ideas {
			fmt.Fprintf(&b, "1. %s\n", idea)
		}
	}
	if sess.LockedArtifact != "" {
		fmt.Fprintf(&b, "\n**Locked:** %s\n", sess.LockedArtifact)
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
	transcriptCmd.Flags().Bool("plain", false, "Print raw markdown without styling")
}
