package main

import "refweaver/cmd"

func main() {
	cmd.Execute()
}
