package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/sif/internal/override"
	"github.com/MeKo-Tech/sif/internal/retrieval"
)

// classification is the machine readable output of the classify command.
type classification struct {
	Query      string               `json:"query"`
	Route      retrieval.Route      `json:"route"`
	Classified retrieval.Route      `json:"classified"`
	Forced     bool                 `json:"forced"`
	Stats      retrieval.QueryStats `json:"stats"`
}

// classifyCmd represents the classify command.
var classifyCmd = &cobra.Command{
	Use:   "classify <image>",
	Short: "Show which route a query image would take",
	Long: `Classify a query image as an object photograph or a logo and print the
statistics the decision was made from. No corpus is needed.

Examples:
  sif classify photo.jpg
  sif classify brand_logo.png --hint-override --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		asJSON, _ := cmd.Flags().GetBool("json")
		hintOverride, _ := cmd.Flags().GetBool("hint-override")

		q, err := loadQuery(args[0])
		if err != nil {
			return err
		}

		engine := buildEngine(cfg, nil)
		pq, err := engine.PrepareQuery(q)
		if err != nil {
			return err
		}
		stats := engine.Stats(pq)
		classified := engine.Config().Classifier.Decide(stats)
		forced := override.Forced(retrieval.RouteAuto, q.Name, hints(cfg), hintOverride)

		out := classification{
			Query:      q.Name,
			Route:      override.Resolve(classified, forced),
			Classified: classified,
			Forced:     forced != retrieval.RouteAuto,
			Stats:      stats,
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		c := engine.Config().Classifier
		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(w, "Query: %s\n", out.Query)
		if out.Forced {
			_, _ = fmt.Fprintf(w, "Route: %s (forced, classified %s)\n", out.Route, out.Classified)
		} else {
			_, _ = fmt.Fprintf(w, "Route: %s\n", out.Route)
		}
		_, _ = fmt.Fprintf(w, "Size: %dx%d\n", stats.Width, stats.Height)
		_, _ = fmt.Fprintf(w, "Keypoints: %d (logo below %d)\n", stats.Keypoints, c.MaxKeypoints)
		_, _ = fmt.Fprintf(w, "Density: %.6f (logo above %g)\n", stats.Density, c.MinDensity)
		_, _ = fmt.Fprintf(w, "Aspect: %.3f (logo below %g)\n", stats.Aspect, c.MaxAspect)
		if c.UseContours {
			_, _ = fmt.Fprintf(w, "Fill: %.3f (logo below %g)\n", stats.Fill, c.MaxFill)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().Bool("hint-override", false, "apply hint words in the query file name")
	classifyCmd.Flags().Bool("json", false, "print the classification as JSON")
}
