package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dossier-cli/internal/model"
)

var (
	recordID        string
	recordWithCalls bool
)

// recordView is the full dossier printed by the record command.
type recordView struct {
	Subject    *model.Subject       `json:"subject"`
	Record     *model.Record        `json:"record"`
	Executives []model.Executive    `json:"executives,omitempty"`
	News       []model.NewsItem     `json:"news,omitempty"`
	Calls      []model.ProviderCall `json:"provider_calls,omitempty"`
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Show the dossier for a subject",
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

		view := recordView{}
		if view.Subject, err = st.LoadSubject(ctx, recordID); err != nil {
			return err
		}
		if view.Record, err = st.GetRecord(ctx, recordID); err != nil {
			return err
		}
		if view.Executives, err = st.ListExecutives(ctx, recordID); err != nil {
			return err
		}
		if view.News, err = st.ListNews(ctx, recordID); err != nil {
			return err
		}
		if recordWithCalls {
			if view.Calls, err = st.ListProviderCalls(ctx, recordID); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordID, "id", "", "subject ID (required)")
	recordCmd.Flags().BoolVar(&recordWithCalls, "calls", false, "include the provider call audit log")
	_ = recordCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(recordCmd)
}
