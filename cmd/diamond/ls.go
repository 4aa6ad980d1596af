package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/infra/gateway"
	"github.com/totegamma/diamond-portal/internal/portal"
)

var lsCmd = &cobra.Command{
	Use:   "ls <collection-id> [path]",
	Short: "List a directory of a collection",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		server, _ := cmd.Flags().GetString("https-server")
		ep := diamond.Endpoint{"id": args[0]}
		if server != "" {
			ep["https_server"] = server
		}

		pane := portal.NewPane(gateway.NewTransferGateway(cfg.Transfer.BaseURL, cfg.Auth.Token, nil))
		var err error
		if len(args) == 2 {
			pane.Endpoint = ep
			err = pane.Navigate(ctx, args[1])
		} else {
			err = pane.Open(ctx, ep)
		}
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer tw.Flush()
		fmt.Fprintf(tw, "%s\n", pane.Path)
		for _, entry := range pane.Entries {
			url := ""
			if server != "" && entry.Type == "file" {
				url, _ = pane.URLs(entry)
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", entry.Type, entry.Name, entry.Size, entry.LastModified, url)
		}
		return nil
	},
}

func init() {
	lsCmd.Flags().String("https-server", "", "HTTPS server of the collection, to print file URLs")
}
