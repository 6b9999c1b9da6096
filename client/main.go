/*
Copyright © 2024 Nokia
*/
package main

import "github.com/sdcio/shell-server/client/cmd"

func main() {
	cmd.Execute()
}
