// Package cmd is a transport-agnostic command core: a command has a name,
// a description and Run. Adapters decide how commands are registered and
// what an Invocation carries in Data.
package cmd

import "context"

// Invocation is the input handed to a command. Data holds the adapter's
// own context, e.g. a Discord interaction.
type Invocation struct {
	Args []string
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
