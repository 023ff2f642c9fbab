// Command framecast drives the documentary production pipeline.
//
// Every command speaks the api contract. By default the CLI opens the
// runtime in-process against the configured data directory; with --remote
// it sends the same requests to a running daemon ("framecast serve") over
// HTTP. Pass --json to print response bodies verbatim.
package main
