/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sdcio/shell-server/pkg/server"
)

var driverKind string
var contextFile string

// driverCmd represents the driver command
var driverCmd = &cobra.Command{
	Use:   "driver",
	Short: "manage driver instances",
}

var driverListCmd = &cobra.Command{
	Use:          "list",
	Short:        "list driver kinds and instances",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rsp := new(server.ListResponse)
		if err := newClient().do(cmd.Context(), http.MethodGet, "/api/v1/drivers", nil, rsp); err != nil {
			return err
		}
		if format == "json" {
			return printJSON(rsp)
		}
		fmt.Printf("kinds: %s\n", strings.Join(rsp.Kinds, ", "))
		printDriversTable(rsp)
		return nil
	},
}

var driverInitCmd = &cobra.Command{
	Use:          "init NAME",
	Short:        "create and initialize a driver instance",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &server.InitializeRequest{Kind: driverKind}
		if contextFile != "" {
			if err := readJSON(contextFile, &req.Context); err != nil {
				return err
			}
		}
		rsp := new(server.Response)
		if err := newClient().do(cmd.Context(), http.MethodPost, "/api/v1/drivers/"+args[0]+"/initialize", req, rsp); err != nil {
			return err
		}
		fmt.Println(rsp.Result)
		return nil
	},
}

var driverDeleteCmd = &cobra.Command{
	Use:          "delete NAME",
	Short:        "clean up and remove a driver instance",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient().do(cmd.Context(), http.MethodDelete, "/api/v1/drivers/"+args[0], nil, nil)
	},
}

func init() {
	rootCmd.AddCommand(driverCmd)
	driverCmd.AddCommand(driverListCmd, driverInitCmd, driverDeleteCmd)
	driverInitCmd.Flags().StringVarP(&driverKind, "kind", "k", "", "driver kind")
	driverInitCmd.Flags().StringVarP(&contextFile, "context", "f", "", "JSON file with the initialization context")
}

func printDriversTable(rsp *server.ListResponse) {
	tableData := make([][]string, 0, len(rsp.Drivers))
	for _, d := range rsp.Drivers {
		tableData = append(tableData, []string{d.Name, d.Kind, strings.Join(d.Commands, "\n")})
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Kind", "Commands"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(tableData)
	table.Render()
}
