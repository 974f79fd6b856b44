// The main package for the tradewatch executable.
package main

import "tradewatch/cmd"

func main() {
	cmd.Execute()
}
