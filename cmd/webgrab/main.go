// Package main provides the entry point for the webgrab CLI.
//
// webgrab crawls a single website politely (robots.txt, per-host delays),
// extracts page content, and exports the results. Crawls can be paused
// and resumed without losing progress.
//
// Usage:
//
//	webgrab crawl <seed-url>
//	webgrab resume <seed-url>
//	webgrab scrape <url>
//	webgrab scrape-all <url-list-file>
//	webgrab search <query>
//
// See --help for all available options.
package main

// main is the entry point for webgrab.
func main() {
	Execute()
}
