package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
)

var (
	enrichID         string
	enrichName       string
	enrichURL        string
	enrichLocation   string
	enrichCEO        string
	enrichCEOProfile string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run the enrichment pipeline for one subject",
	Long: "Enriches an existing subject by --id, or creates one from " +
		"--name/--url and enriches it in one shot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		subjectID := enrichID
		if subjectID == "" {
			if enrichName == "" || enrichURL == "" {
				return eris.New("either --id or both --name and --url are required")
			}
			subject := model.Subject{
				Name:       enrichName,
				WebsiteURL: enrichURL,
				CEOName:    enrichCEO,
				CEOProfile: enrichCEOProfile,
			}
			subject.City, subject.State, subject.Country = splitLocation(enrichLocation)

			created, createErr := env.Store.CreateSubject(ctx, subject)
			if createErr != nil {
				return eris.Wrap(createErr, "create subject")
			}
			subjectID = created.ID
			zap.L().Info("subject created", zap.String("subject_id", subjectID))
		}

		summary, err := env.Pipeline.Enrich(ctx, subjectID)
		if err != nil {
			env.Pipeline.MarkFailed(ctx, subjectID, err)
			return eris.Wrap(err, "enrich")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

// splitLocation parses "City, State" or "City, State, Country".
func splitLocation(loc string) (city, state, country string) {
	parts := strings.Split(loc, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 0:
	case 1:
		city = parts[0]
	case 2:
		city, state = parts[0], parts[1]
	default:
		city, state, country = parts[0], parts[1], parts[2]
	}
	return city, state, country
}

func init() {
	enrichCmd.Flags().StringVar(&enrichID, "id", "", "subject ID to enrich")
	enrichCmd.Flags().StringVar(&enrichName, "name", "", "company name (create-and-enrich)")
	enrichCmd.Flags().StringVar(&enrichURL, "url", "", "company website URL (create-and-enrich)")
	enrichCmd.Flags().StringVar(&enrichLocation, "location", "", `location as "City, State[, Country]"`)
	enrichCmd.Flags().StringVar(&enrichCEO, "ceo", "", "CEO name, if known")
	enrichCmd.Flags().StringVar(&enrichCEOProfile, "ceo-profile", "", "CEO profile URL, if known")
	rootCmd.AddCommand(enrichCmd)
}
