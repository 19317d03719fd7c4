// Package main provides the entry point for the kbcrawl CLI.
//
// kbcrawl crawls a website from a seed URL, following same-origin links
// breadth-first or depth-first, and stores a screenshot and a text
// document of every page it processes into a local knowledge base.
//
// Usage:
//
//	kbcrawl crawl https://example.com/docs
//	kbcrawl crawl --algo dfs --depth 2 https://example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
