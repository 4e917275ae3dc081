// Package testsupport holds helpers shared by package tests: a temp-dir
// configuration builder, a sized file writer, and a record store opener.
package testsupport
