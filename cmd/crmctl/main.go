// Command crmctl imports, exports and converts CRM records from the
// command line, using the same configuration as the server.
package main

import (
	"fmt"
	"os"
)

func main() {
	c := newCLI()
	err := newRootCmd(c).Execute()
	c.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", userError(err))
		os.Exit(1)
	}
}
