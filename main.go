package main

import "github.com/KaramelBytes/tabschema-cli/cmd"

func main() {
	cmd.Execute()
}
