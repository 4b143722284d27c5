package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tvpsh2021/social-snap-sub001/pkg/ui"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported platforms",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range newRegistry(cfg).Platforms() {
			var caps []string
			if p.Capabilities.Carousel {
				caps = append(caps, "carousel")
			}
			if p.Capabilities.CommentFiltering {
				caps = append(caps, "comment filtering")
			}
			if p.Capabilities.PhotoViewer {
				caps = append(caps, "photo viewer")
			}
			fmt.Fprintf(ui.Out, "%s  %s\n", ui.Cyan(fmt.Sprintf("%-10s", p.ID)), p.Info.Description)
			fmt.Fprintf(ui.Out, "            hosts: %s\n", strings.Join(p.Info.Hosts, ", "))
			if len(caps) > 0 {
				fmt.Fprintf(ui.Out, "            %s\n", ui.Dim(strings.Join(caps, ", ")))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(platformsCmd)
}
