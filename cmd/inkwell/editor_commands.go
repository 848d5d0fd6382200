package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/client"
	"github.com/spf13/cobra"
)

func (a *cli) editorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolbar",
		Short: "List the formatting operations the editor supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			toolbar, err := apiClient.EditorCommands(cmd.Context())
			if err != nil {
				return err
			}
			writer := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "COMMAND\tHOST\tTOGGLE")
			for _, command := range toolbar.Commands {
				fmt.Fprintf(writer, "%s\t%s\t%t\n", command.Name, command.HostCommand, command.Toggle)
			}
			_ = writer.Flush()
			fmt.Fprintf(a.out, "font sizes (default %dpx):", toolbar.DefaultFontSizePx)
			for _, size := range toolbar.FontSizes {
				fmt.Fprintf(a.out, " %d", size.Px)
			}
			fmt.Fprintln(a.out)
			return nil
		},
	}
	cmd.AddCommand(a.toolbarApplyCommand())
	return cmd
}

func (a *cli) toolbarApplyCommand() *cobra.Command {
	var selection string
	cmd := &cobra.Command{
		Use:   "apply <command[=px]>...",
		Short: "Show the host editing calls and resulting state for a sequence of operations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := client.EditorApply{Operations: make([]client.EditorStep, 0, len(args))}
			parsed, err := parseSelection(selection)
			if err != nil {
				return err
			}
			request.Selection = parsed
			for _, arg := range args {
				step, err := parseEditorStep(arg)
				if err != nil {
					return err
				}
				request.Operations = append(request.Operations, step)
			}

			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			result, err := apiClient.ApplyEditorOperations(cmd.Context(), request)
			if err != nil {
				return err
			}
			writer := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "COMMAND\tHOST\tVALUE")
			for _, call := range result.Calls {
				fmt.Fprintf(writer, "%s\t%s\t%s\n", call.Command, call.HostCommand, call.Value)
			}
			_ = writer.Flush()
			state := result.State
			fmt.Fprintf(a.out, "state: bold=%t italic=%t underline=%t align=%s size=%dpx\n",
				state.Bold, state.Italic, state.Underline, state.Alignment, state.FontSizePx)
			return nil
		},
	}
	cmd.Flags().StringVar(&selection, "selection", "0:0", "selection as start:end character offsets")
	return cmd
}

func parseEditorStep(raw string) (client.EditorStep, error) {
	name, size, hasSize := strings.Cut(raw, "=")
	step := client.EditorStep{Command: name}
	if !hasSize {
		return step, nil
	}
	px, err := strconv.Atoi(size)
	if err != nil {
		return client.EditorStep{}, fmt.Errorf("invalid font size in %q", raw)
	}
	step.FontSizePx = px
	return step, nil
}

func parseSelection(raw string) (client.Selection, error) {
	start, end, ok := strings.Cut(raw, ":")
	if !ok {
		return client.Selection{}, fmt.Errorf("selection %q must be start:end", raw)
	}
	startOffset, startErr := strconv.Atoi(start)
	endOffset, endErr := strconv.Atoi(end)
	if startErr != nil || endErr != nil {
		return client.Selection{}, fmt.Errorf("selection %q must be start:end", raw)
	}
	return client.Selection{Start: startOffset, End: endOffset}, nil
}
