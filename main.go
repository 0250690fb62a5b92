package main

import "example.com/convoy/cmd"

func main() {
	cmd.Execute()
}
