// main.go
package main

import "github.com/forge3d/blenderbridge/cmd"

func main() {
	cmd.Execute()
}
