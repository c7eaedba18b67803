// Package main is the entry point for ytgate, the resilient consumption
// layer for the YouTube Data API.
package main

func main() {
	Execute()
}
