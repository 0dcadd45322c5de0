package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dossier-cli/internal/model"
)

var (
	subjectName       string
	subjectURL        string
	subjectLocation   string
	subjectCEO        string
	subjectCEOProfile string
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Manage research subjects",
}

var subjectsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new subject",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		subject := model.Subject{
			Name:       subjectName,
			WebsiteURL: subjectURL,
			CEOName:    subjectCEO,
			CEOProfile: subjectCEOProfile,
		}
		subject.City, subject.State, subject.Country = splitLocation(subjectLocation)

		created, err := st.CreateSubject(ctx, subject)
		if err != nil {
			return eris.Wrap(err, "create subject")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(created)
	},
}

var subjectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered subjects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		subjects, err := st.ListSubjects(ctx)
		if err != nil {
			return eris.Wrap(err, "list subjects")
		}

		for _, s := range subjects {
			loc := s.Location()
			if loc == "" {
				loc = "-"
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", s.ID, s.Name, s.WebsiteURL, loc)
		}
		return nil
	},
}

func init() {
	subjectsAddCmd.Flags().StringVar(&subjectName, "name", "", "company name (required)")
	subjectsAddCmd.Flags().StringVar(&subjectURL, "url", "", "company website URL (required)")
	subjectsAddCmd.Flags().StringVar(&subjectLocation, "location", "", `location as "City, State[, Country]"`)
	subjectsAddCmd.Flags().StringVar(&subjectCEO, "ceo", "", "CEO name, if known")
	subjectsAddCmd.Flags().StringVar(&subjectCEOProfile, "ceo-profile", "", "CEO profile URL, if known")
	_ = subjectsAddCmd.MarkFlagRequired("name")
	_ = subjectsAddCmd.MarkFlagRequired("url")

	subjectsCmd.AddCommand(subjectsAddCmd)
	subjectsCmd.AddCommand(subjectsListCmd)
	rootCmd.AddCommand(subjectsCmd)
}
