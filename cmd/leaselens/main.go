// The leaselens binary is the operator CLI: local one-shot analysis, corpus
// preparation, and database migrations.
package main

import "github.com/leaselens/leaselens/internal/interfaces/cli"

func main() {
	cli.Execute()
}
