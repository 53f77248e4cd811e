package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ahmed123sa/whatsapp-auto/config"
	"github.com/Ahmed123sa/whatsapp-auto/phone"
	"github.com/Ahmed123sa/whatsapp-auto/storage"
)

func newGroupsCmd(cfgFile *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List provisioned groups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(*cfgFile)
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListRecords(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tGROUP ID\tNAME\tCLIENT\tMEMBERS")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					r.CreatedAt.Local().Format(time.DateTime), r.GroupID, r.GroupLabel, phone.Number(r.Participants.Client), r.Participants.Size())
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}
