package main

import "plansync/cmd/plansync/cmd"

func main() {
	cmd.Execute()
}
