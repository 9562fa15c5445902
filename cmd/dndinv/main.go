package main

import "github.com/Merdeus/dndinventory/internal/cli"

func main() {
	cli.Execute()
}
