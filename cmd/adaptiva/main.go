package main

import "github.com/panyam/adaptiva/cmd/adaptiva/commands"

func main() {
	commands.Execute()
}
