package main

import "github.com/twentylab/handelsregister/cmd/handelsregister/cmd"

func main() {
	cmd.Execute()
}
