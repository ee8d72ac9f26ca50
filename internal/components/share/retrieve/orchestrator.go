package retrieve

import (
	"context"
	"log/slog"

	"github.com/sharelock/sharelock-go/internal/components/share/secret"
	"github.com/sharelock/sharelock-go/internal/platform/logutil"
)

// AccessResolver derives share access parameters from a share secret.
// Extracted for mocks.
type AccessResolver interface {
	Derive(shareSecret string) (*secret.Access, error)
}

// Attempter performs one fetch-and-classify attempt. Extracted for mocks.
type Attempter interface {
	Attempt(ctx context.Context, access *secret.Access, identityToken string) (*Outcome, error)
}

// Orchestrator owns the identity-fallback policy: derive access once, then
// try identity tokens in caller order, continuing past per-attempt failures
// and Unauthorized outcomes only while a fallback identity remains. It is
// the only place that decides retry vs. surface; the attempter never
// swallows anything itself.
type Orchestrator struct {
	resolver  AccessResolver
	attempter Attempter
	logger    *slog.Logger
}

// NewOrchestrator builds an orchestrator over the given collaborators.
func NewOrchestrator(resolver AccessResolver, attempter Attempter, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		resolver:  resolver,
		attempter: attempter,
		logger:    logutil.NoopIfNil(logger),
	}
}

// Retrieve resolves the share secret and runs the attempt sequence.
//
// With no identity tokens, exactly one anonymous attempt is made and its
// outcome returned verbatim, Unauthorized included. With tokens, attempts
// run strictly sequentially in caller order; each attempt may count against
// the share's view cap, so none are issued concurrently. An Unauthorized
// outcome is retried with the next identity; every other outcome is
// resource-global and returned immediately. An attempt error is swallowed
// only when a fallback identity remains; on the last identity it surfaces,
// and earlier errors are discarded, not aggregated.
func (o *Orchestrator) Retrieve(ctx context.Context, shareSecret string, identityTokens []string) (*Outcome, error) {
	access, err := o.resolver.Derive(shareSecret)
	if err != nil {
		return nil, NewClassifiedError(ReasonDeriveFailed, "failed to derive share access", err)
	}

	if len(identityTokens) == 0 {
		return o.attempter.Attempt(ctx, access, "")
	}

	last := len(identityTokens) - 1
	for i, token := range identityTokens {
		outcome, err := o.attempter.Attempt(ctx, access, token)
		if err != nil {
			if i == last {
				return nil, err
			}
			o.logger.Warn("share attempt failed, falling back to next identity",
				"resource_id", access.ResourceID,
				"attempt", i+1,
				"reason", ReasonOf(err),
				"error", err)
			continue
		}

		if outcome.Kind == KindUnauthorized && i != last {
			o.logger.Debug("identity rejected, falling back to next identity",
				"resource_id", access.ResourceID,
				"attempt", i+1)
			continue
		}

		return outcome, nil
	}

	// The last iteration always returns.
	panic("unreachable")
}
