/*
Package cmd provides all the commands for the n1qlback binary.

The commands are separated by file, one per command. There are a few global CLI flags that can be used
to configure how n1qlback will operate. These are defined by the globally exposed variables

Usage

	n1qlback run -f queries.json -t 8 -U cb1.local -u Administrator -P password
	n1qlback probe -U cb1.local --tls
*/
package cmd
