package main

import "mrilo/internal/cli"

func main() {
	cli.Execute()
}
