// Command nemet compiles Nmet source files into relocatable ELF64
// objects.
package main

import "github.com/mahanfr/nmet/cmd/nemet/cmd"

func main() {
	cmd.Execute()
}
