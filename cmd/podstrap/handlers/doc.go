// Package handlers implements the business logic for podstrap commands.
//
// Each handler loads the configuration once, opens the execution log and
// drives the provisioning packages. Constructors that touch the outside
// world are package variables so tests can replace them.
package handlers
