package main

import "specbook/cmd/specbook-cli/cmd"

func main() {
	cmd.Execute()
}
