package main

import "todoapp/cmd"

func main() {
	cmd.Execute()
}
