// Command jizhang records expenses in a spreadsheet and reports spending
// against a monthly budget.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
