// Command taskboardctl prints the merged Notion workload from the terminal.
package main

import "github.com/ekaya-inc/taskboard/cmd/taskboardctl/cmd"

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cmd.Execute(Version)
}
