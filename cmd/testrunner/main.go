package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lawnchairsociety/battlecalc/test"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "Odds service websocket URL")
	key := flag.String("key", os.Getenv("BATTLECALC_ACCESS_KEY"), "Access key, if the service requires one")
	filter := flag.String("run", "", "Only run tests whose names contain this string")
	list := flag.Bool("list", false, "List test names and exit")
	verbose := flag.Bool("v", false, "Verbose output - show detailed actions for each test")
	flag.Parse()

	if *list {
		fmt.Println(strings.Join(test.GetTestNames(), "\n"))
		return
	}

	test.Verbose = *verbose

	fmt.Printf("Running smoke tests against %s\n", *url)
	fmt.Println("Make sure oddsd is running!")
	if *verbose {
		fmt.Println("Verbose mode enabled - showing detailed test actions")
	}
	fmt.Println()

	results := test.RunFilteredTests(test.Target{URL: *url, AccessKey: *key}, *filter)
	test.PrintResults(results)

	if test.Failed(results) > 0 {
		os.Exit(1)
	}
}
