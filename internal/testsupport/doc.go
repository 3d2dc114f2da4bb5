// Package testsupport provides config, inference, and storage fixtures for
// package tests.
package testsupport
