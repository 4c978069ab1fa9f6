package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkralik/photo-tagger/internal/config"
)

var albumCmd = &cobra.Command{
	Use:   "album [album-uid]",
	Short: "Show an album and its photos",
	Long: `Retrieves the album and lists its photos with their processing state:
whether they carry the marker tag and whether GPS coordinates are present.`,
	Args: cobra.ExactArgs(1),
	RunE: runAlbum,
}

func init() {
	rootCmd.AddCommand(albumCmd)
}

func runAlbum(cmd *cobra.Command, args []string) error {
	albumUID := args[0]
	cfg := config.Load()

	host, err := newHostClient(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	album, err := host.GetAlbum(ctx, albumUID)
	if err != nil {
		return fmt.Errorf("failed to get album: %w", err)
	}

	items, err := host.ListAlbumItems(ctx, albumUID)
	if err != nil {
		return fmt.Errorf("failed to list album items: %w", err)
	}

	fmt.Printf("%s (%s), %d items\n\n", album.Title, album.UID, len(items))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tFILE\tTYPE\tGPS\tTAGGED")
	fmt.Fprintln(w, "---\t----\t----\t---\t------")

	for _, item := range items {
		gps := "-"
		if item.HasLocation() {
			gps = "yes"
		}
		tagged := "-"
		if item.HasKeyword(cfg.Processing.MarkerTag) {
			tagged = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", item.UID, item.FileName, item.Type, gps, tagged)
	}

	return w.Flush()
}
