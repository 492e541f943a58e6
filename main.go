/*
Copyright © 2026 JACOB ARTHURS
*/
package main

import "github.com/jacobarthurs/htscope/cmd"

func main() {
	cmd.Execute()
}
