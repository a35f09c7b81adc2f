package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/normanking/facerig/internal/model"
)

func newChannelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels <model.glb>",
		Short: "List a model's morph targets and the channels the engine binds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := model.Load(args[0])
			if err != nil {
				return err
			}
			inv := m.Inventory(a.cfg.Animation.Head)

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(inv)
			}
			return printInventory(cmd.OutOrStdout(), inv)
		},
	}
	cmd.Flags().Bool("json", false, "Print the inventory as JSON")
	return cmd
}

func printInventory(w io.Writer, inv model.Inventory) error {
	fmt.Fprintln(w, titleStyle.Render("Model")+" "+dimStyle.Render(inv.Path))
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("Meshes"))
	for _, mesh := range inv.Meshes {
		fmt.Fprintf(w, "  %s %s\n", mesh.Name, dimStyle.Render(fmt.Sprintf("(%d targets)", len(mesh.Targets))))
		for _, t := range mesh.Targets {
			fmt.Fprintf(w, "    %s\n", t)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Bound channels"), dimStyle.Render(fmt.Sprintf("(%d)", len(inv.Bound))))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, b := range inv.Bound {
		fmt.Fprintf(tw, "  %s\t%s\n", okStyle.Render("●")+" "+b.Channel, b.Target)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	if len(inv.Unused) > 0 {
		fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Unused targets"), dimStyle.Render(strings.Join(inv.Unused, ", ")))
	}
	head := inv.HeadBone
	if head == "" {
		head = "none"
	}
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Head bone"), head)

	f := inv.Features
	fmt.Fprintf(w, "%s mouth=%t blink=%t gaze=%t idle=%t gesture=%t head=%t\n",
		titleStyle.Render("Features"), f.Mouth, f.Blink, f.Gaze, f.Idle, f.Gesture, f.Head)
	return nil
}
