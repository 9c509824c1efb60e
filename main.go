/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "sahayak/cmd"

func main() {
	cmd.Execute()
}
