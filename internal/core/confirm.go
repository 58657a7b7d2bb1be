package core

import "context"

// PromptKind identifies which decision point is asking for confirmation.
type PromptKind string

// Decision points that may need an operator's go-ahead.
const (
	// PromptCageOccupied fires when a breeding cage already holds animals.
	PromptCageOccupied PromptKind = "cage_occupied"
	// PromptUnknownStrain fires when a weaned litter's strain is not yet in the store.
	PromptUnknownStrain PromptKind = "unknown_strain"
)

// Prompt describes one confirmation request.
type Prompt struct {
	Kind    PromptKind
	Subject string
	Message string
}

// ConfirmPolicy decides, synchronously, whether an operation may proceed.
type ConfirmPolicy interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmFunc adapts a function to ConfirmPolicy.
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

// Confirm implements ConfirmPolicy.
func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

type staticPolicy bool

func (s staticPolicy) Confirm(context.Context, Prompt) (bool, error) { return bool(s), nil }

var (
	// AlwaysAbort declines every prompt. It is the default for unattended use.
	AlwaysAbort ConfirmPolicy = staticPolicy(false)
	// AlwaysProceed accepts every prompt.
	AlwaysProceed ConfirmPolicy = staticPolicy(true)
)
