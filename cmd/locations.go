package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkralik/photo-tagger/internal/config"
	"github.com/mkralik/photo-tagger/internal/geo"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Inspect and test location resolution",
}

var locationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the custom regions from the gazetteer file",
	RunE:  runLocationsList,
}

var locationsCheckCmd = &cobra.Command{
	Use:   "check [lat] [lng]",
	Short: "Resolve a coordinate to a place name",
	Long: `Runs the full resolution chain for a coordinate: custom regions first,
then reverse geocoding and nearby venue search. Useful for checking what
a photo at the given position would be tagged with.`,
	Args: cobra.ExactArgs(2),
	RunE: runLocationsCheck,
}

func init() {
	rootCmd.AddCommand(locationsCmd)
	locationsCmd.AddCommand(locationsListCmd)
	locationsCmd.AddCommand(locationsCheckCmd)

	locationsCheckCmd.Flags().Bool("interactive", false, "Ask which nearby venue to use when several are found")
	locationsCheckCmd.Flags().Bool("no-custom", false, "Skip the custom region lookup")
}

func runLocationsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	gazetteer, err := geo.LoadGazetteer(cfg.Location.GazetteerPath)
	if err != nil {
		return fmt.Errorf("failed to load gazetteer: %w", err)
	}

	regions := gazetteer.Regions()
	if len(regions) == 0 {
		fmt.Printf("No custom regions defined in %s\n", cfg.Location.GazetteerPath)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCENTER\tRADIUS\tALIASES")
	fmt.Fprintln(w, "----\t------\t------\t-------")
	for _, region := range regions {
		fmt.Fprintf(w, "%s\t%s\t%.0fm\t%s\n",
			region.Name, region.Center(), region.Radius, strings.Join(region.Aliases, ", "))
	}
	return w.Flush()
}

func runLocationsCheck(cmd *cobra.Command, args []string) error {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid latitude %q: %w", args[0], err)
	}
	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid longitude %q: %w", args[1], err)
	}
	coord, err := geo.NewCoordinate(lat, lng)
	if err != nil {
		return err
	}

	cfg := config.Load()
	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}

	resolution := resolver.Resolve(cmd.Context(), coord, geo.ResolveOptions{
		PreferCustom: cfg.Location.PreferCustom && !mustGetBool(cmd, "no-custom"),
		Interactive:  mustGetBool(cmd, "interactive"),
	})

	if resolution.Display == "" {
		fmt.Printf("No place name found for %s\n", coord)
		return nil
	}

	source := "geocoded"
	if resolution.Custom {
		source = "custom region"
	}
	fmt.Printf("%s  (%s)\n", resolution.Display, source)
	if len(resolution.Aliases) > 0 {
		fmt.Printf("Aliases: %s\n", strings.Join(resolution.Aliases, ", "))
	}
	return nil
}
