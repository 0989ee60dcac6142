package main

import "github.com/andresmejia3/crease/cmd"

func main() {
	cmd.Execute()
}
