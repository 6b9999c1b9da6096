/*
Copyright © 2024 Nokia
*/
package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sdcio/shell-server/pkg/server"
)

var commandID string
var commandParams map[string]string

var execCmd = &cobra.Command{
	Use:          "exec DRIVER COMMAND",
	Short:        "run a driver command",
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &server.CommandRequest{CommandID: commandID, Params: commandParams}
		if contextFile != "" {
			if err := readJSON(contextFile, &req.Context); err != nil {
				return err
			}
		}
		rsp := new(server.Response)
		err := newClient().do(cmd.Context(), http.MethodPost, "/api/v1/drivers/"+args[0]+"/commands/"+args[1], req, rsp)
		if err != nil {
			return err
		}
		if format == "json" {
			return printJSON(rsp)
		}
		fmt.Println(rsp.Result)
		return nil
	},
}

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "inspect and cancel running commands",
}

var commandListCmd = &cobra.Command{
	Use:          "list",
	Short:        "list running commands",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rsp := new(server.CommandsResponse)
		if err := newClient().do(cmd.Context(), http.MethodGet, "/api/v1/commands", nil, rsp); err != nil {
			return err
		}
		if format == "json" {
			return printJSON(rsp)
		}
		printCommandsTable(rsp)
		return nil
	},
}

var commandCancelCmd = &cobra.Command{
	Use:          "cancel ID",
	Short:        "cancel a running command",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		rsp := new(server.Response)
		if err := newClient().do(cmd.Context(), http.MethodPost, "/api/v1/commands/"+args[0]+"/cancel", nil, rsp); err != nil {
			return err
		}
		fmt.Println(rsp.Result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(execCmd, commandCmd)
	commandCmd.AddCommand(commandListCmd, commandCancelCmd)
	execCmd.Flags().StringVarP(&contextFile, "context", "f", "", "JSON file with the command context")
	execCmd.Flags().StringVar(&commandID, "id", "", "command id, generated by the server when empty")
	execCmd.Flags().StringToStringVarP(&commandParams, "param", "p", nil, "command parameter as name=value")
}

func printCommandsTable(rsp *server.CommandsResponse) {
	tableData := make([][]string, 0, len(rsp.Commands))
	for _, c := range rsp.Commands {
		tableData = append(tableData, []string{c.ID, c.Driver, c.Command, time.Since(c.Started).Truncate(time.Second).String()})
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Driver", "Command", "Running"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(tableData)
	table.Render()
}
