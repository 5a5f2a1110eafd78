// Package main provides the entry point for the ballotharvest CLI.
//
// ballotharvest collects election results and candidate listings from
// public election websites and writes them as a dated xlsx table.
//
// Usage:
//
//	ballotharvest tree [root-url...]
//	ballotharvest postback [root-url]
//	ballotharvest features [query-url]
//	ballotharvest history [--compare A B]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
