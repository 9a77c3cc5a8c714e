// Command stratum manages a stability-tiered prompt cache for a repository.
package main

import "github.com/papapumpkin/stratum/cmd"

func main() {
	cmd.Execute()
}
