package main

import "perch/internal/cli"

func main() {
	cli.Execute()
}
