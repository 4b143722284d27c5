package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/ui"
)

var (
	htmlFile   string
	jsonOutput bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <post-url>",
	Short: "List the images of a post without downloading them",
	Long: `Open a post page, run the extractor for its platform and list the
full-size image URLs it finds.

With --html the page is read from a saved copy of the rendered post
instead of a live browser. Carousels are only fully navigated on live
pages.`,
	Example: `  socialsnap extract https://www.instagram.com/p/C1abcDEF/
  socialsnap extract https://www.threads.net/@alice/post/C1abc --html post.html --json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&htmlFile, "html", "", "read the rendered page from a saved HTML file")
	extractCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the image records as JSON")
}

func runExtract(cmd *cobra.Command, args []string) error {
	postURL := strings.TrimSpace(args[0])
	log := logger.Component("extract")

	platform, images, err := extractFrom(cmd.Context(), cfg, postURL, htmlFile)
	if err != nil {
		log.WithError(err).Error("Extraction failed")
		return userError(err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(images)
	}

	ui.PrintInfo("Platform", string(platform))
	printImages(images)
	return nil
}

func printImages(images []models.ImageRecord) {
	if len(images) == 0 {
		ui.PrintWarning("No images found on this post")
		return
	}
	ui.PrintInfo("Images", fmt.Sprintf("%d", len(images)))
	for i, img := range images {
		size := ""
		if img.Width > 0 && img.Height > 0 {
			size = fmt.Sprintf(" (%dx%d)", img.Width, img.Height)
		}
		fmt.Fprintf(ui.Out, "  %2d. %s%s\n", i+1, img.FullSizeURL, ui.Dim(size))
	}
}

// userError replaces typed errors with the message meant for end users
func userError(err error) error {
	if errs.TypeOf(err) == errs.ErrorTypeUnknown {
		return err
	}
	return errors.New(errs.UserMessage(err))
}
